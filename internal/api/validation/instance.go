package validation

import (
	"regexp"
	"strings"
)

var (
	nameRegex      = regexp.MustCompile(`^[a-z][a-z0-9-]{1,61}[a-z0-9]$`)
	subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CreateInstanceRequest mirrors the fields needed for create validation.
type CreateInstanceRequest struct {
	Name       string
	Subdomain  string
	ServerType string
	Image      string
	Location   string
}

// ValidateCreateInstanceRequest validates the fields of a create instance
// request. Returns a slice of field errors; empty slice means valid.
func ValidateCreateInstanceRequest(req CreateInstanceRequest) []FieldError {
	var errs []FieldError

	if req.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if !nameRegex.MatchString(req.Name) {
		errs = append(errs, FieldError{Field: "name", Message: "name must be lowercase alphanumeric with hyphens, 3-63 characters, starting with a letter"})
	} else if strings.Contains(req.Name, "--") {
		errs = append(errs, FieldError{Field: "name", Message: "name must not contain consecutive hyphens"})
	}

	if req.Subdomain != "" && !subdomainRegex.MatchString(req.Subdomain) {
		errs = append(errs, FieldError{Field: "subdomain", Message: "subdomain must be a lowercase DNS label of at most 63 characters"})
	}

	if strings.TrimSpace(req.ServerType) == "" {
		errs = append(errs, FieldError{Field: "serverType", Message: "serverType is required"})
	}

	if strings.TrimSpace(req.Image) == "" {
		errs = append(errs, FieldError{Field: "image", Message: "image is required"})
	}

	if len(req.Location) > 32 {
		errs = append(errs, FieldError{Field: "location", Message: "location must be at most 32 characters"})
	}

	return errs
}
