package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vessel-labs/vessel/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [type] [file]",
	Short: "Validate a deploy-template request body",
	Long: `Validate a JSON document against the same DTOs the HTTP edge checks
on /setup, /create, and /upload, without sending it anywhere.

Examples:
  vesseld validate setup deploy.json
  vesseld validate create create.json
  vesseld validate upload upload.json`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	entityType := args[0]
	filename := args[1]

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	validator := validation.New()

	var result *validation.ValidationResult

	switch entityType {
	case "setup":
		var req validation.SetupRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("failed to parse %s as setup request: %w", filename, err)
		}
		result = validator.ValidateSetupRequest(&req)
	case "create":
		var req validation.CreateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("failed to parse %s as create request: %w", filename, err)
		}
		result = validator.ValidateCreateRequest(&req)
	case "upload":
		var info validation.UploadInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("failed to parse %s as upload info: %w", filename, err)
		}
		result = validator.ValidateUploadInfo(&info)
	default:
		return fmt.Errorf("unknown type: %s (use 'setup', 'create', or 'upload')", entityType)
	}

	if result.Valid {
		fmt.Println("valid")
		return nil
	}

	fmt.Println("invalid:")
	for _, e := range result.Errors {
		if e.Value != nil {
			fmt.Printf("  - %s: %s (value: %v)\n", e.Field, e.Message, e.Value)
		} else {
			fmt.Printf("  - %s: %s\n", e.Field, e.Message)
		}
	}

	return fmt.Errorf("validation failed")
}
