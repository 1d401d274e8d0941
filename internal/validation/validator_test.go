package validation

import "testing"

func TestValidateSetupRequestRejectsMissingDeployID(t *testing.T) {
	v := New()
	result := v.ValidateSetupRequest(&SetupRequest{
		Services: map[string]map[string]interface{}{"web": {"image": "nginx"}},
	})
	if result.Valid {
		t.Fatal("expected invalid result for missing deploy_id")
	}
}

func TestValidateSetupRequestRejectsBadServiceName(t *testing.T) {
	v := New()
	result := v.ValidateSetupRequest(&SetupRequest{
		DeployID: "my-app",
		Services: map[string]map[string]interface{}{"_bad name!": {"image": "nginx"}},
	})
	if result.Valid {
		t.Fatal("expected invalid result for malformed service name")
	}
}

func TestValidateSetupRequestAcceptsWellFormedRequest(t *testing.T) {
	v := New()
	result := v.ValidateSetupRequest(&SetupRequest{
		DeployID: "my-app",
		Services: map[string]map[string]interface{}{"web": {"image": "nginx"}},
		Globals:  map[string]interface{}{"Env": map[string]interface{}{}},
	})
	if !result.Valid {
		t.Fatalf("expected valid result, got errors: %+v", result.Errors)
	}
}

func TestValidateCreateRequestRejectsBadID(t *testing.T) {
	v := New()
	result := v.ValidateCreateRequest(&CreateRequest{DeployID: "-leading-dash"})
	if result.Valid {
		t.Fatal("expected invalid result for deploy id starting with a dash")
	}
}

func TestValidateUploadInfoRequiresServiceName(t *testing.T) {
	v := New()
	result := v.ValidateUploadInfo(&UploadInfo{DeployID: "my-app"})
	if result.Valid {
		t.Fatal("expected invalid result for missing service_name")
	}
}
