// Package validation validates the HTTP edge's deploy-template request
// bodies before they reach the controller: deployment ids, the services
// map, and globals on /setup, and the upload info document on /upload. It
// uses go-playground/validator for struct-tag validation, the same library
// the teacher repo validates its own DTOs with.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error with field-level details.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationResult represents the complete result of a validation operation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var deploymentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// SetupRequest is the /setup request body's DTO.
type SetupRequest struct {
	DeployID string                            `json:"deploy_id" validate:"required,max=253"`
	Services map[string]map[string]interface{} `json:"services" validate:"required"`
	Globals  map[string]interface{}            `json:"globals"`
	Force    bool                              `json:"force"`
}

// CreateRequest is the /create request body's DTO.
type CreateRequest struct {
	DeployID string `json:"deploy_id" validate:"required,max=253"`
}

// UploadInfo is the JSON `data` field accompanying a multipart /upload.
type UploadInfo struct {
	DeployID    string `json:"deploy_id" validate:"required"`
	ServiceName string `json:"service_name" validate:"required"`
}

// Validator validates deploy-template DTOs.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a ready-to-use Validator.
func New() *Validator {
	v := validator.New()
	return &Validator{structValidator: v}
}

// ValidateSetupRequest checks a SetupRequest for structural validity,
// including that deploy_id and every service name look like identifiers a
// container/volume path can safely be built from.
func (v *Validator) ValidateSetupRequest(req *SetupRequest) *ValidationResult {
	errs := v.structErrors(req)
	if req.DeployID != "" && !isValidIdentifier(req.DeployID) {
		errs = append(errs, ValidationError{
			Field:   "deploy_id",
			Message: "must start with an alphanumeric and contain only letters, digits, - and _",
			Value:   req.DeployID,
		})
	}
	for name := range req.Services {
		if !isValidIdentifier(name) {
			errs = append(errs, ValidationError{
				Field:   "services." + name,
				Message: "service name must start with an alphanumeric and contain only letters, digits, - and _",
				Value:   name,
			})
		}
	}
	return result(errs)
}

// ValidateCreateRequest checks a CreateRequest.
func (v *Validator) ValidateCreateRequest(req *CreateRequest) *ValidationResult {
	errs := v.structErrors(req)
	if req.DeployID != "" && !isValidIdentifier(req.DeployID) {
		errs = append(errs, ValidationError{
			Field:   "deploy_id",
			Message: "must start with an alphanumeric and contain only letters, digits, - and _",
			Value:   req.DeployID,
		})
	}
	return result(errs)
}

// ValidateUploadInfo checks an UploadInfo.
func (v *Validator) ValidateUploadInfo(info *UploadInfo) *ValidationResult {
	return result(v.structErrors(info))
}

func (v *Validator) structErrors(s interface{}) []ValidationError {
	var errs []ValidationError
	if err := v.structValidator.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, ValidationError{
					Field:   toSnakeField(fe.Namespace()),
					Message: fmt.Sprintf("failed %q validation", fe.Tag()),
					Value:   fe.Value(),
				})
			}
		} else {
			errs = append(errs, ValidationError{Field: "document", Message: err.Error()})
		}
	}
	return errs
}

func result(errs []ValidationError) *ValidationResult {
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func isValidIdentifier(s string) bool {
	return deploymentIDPattern.MatchString(s)
}

func toSnakeField(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return namespace
}
