package handler

import (
	"strings"

	"intake/internal/applicant"
	dErrors "intake/pkg/domain-errors"
)

const (
	maxNameLen  = 100
	maxFieldLen = 500
	maxNoteLen  = 2000
)

// SubmitRequest is the HTTP request body for POST /public/apply.
type SubmitRequest struct {
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	City          string         `json:"city"`
	Zip           string         `json:"zip"`
	StreetAddress string         `json:"street_address"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	CustomFields  map[string]any `json:"custom_fields"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.FirstName == "" || r.LastName == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "first_name and last_name are required")
	}
	for name, value := range map[string]string{
		"first_name":     r.FirstName,
		"last_name":      r.LastName,
		"city":           r.City,
		"zip":            r.Zip,
		"street_address": r.StreetAddress,
		"phone":          r.Phone,
		"email":          r.Email,
	} {
		limit := maxFieldLen
		if name == "first_name" || name == "last_name" {
			limit = maxNameLen
		}
		if len(value) > limit {
			return dErrors.New(dErrors.CodeInvalidInput, name+" is too long")
		}
	}
	return nil
}

// Submission converts the request to the domain payload.
func (r *SubmitRequest) Submission() applicant.Submission {
	return applicant.Submission{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		City:          r.City,
		Zip:           r.Zip,
		StreetAddress: r.StreetAddress,
		Phone:         r.Phone,
		Email:         r.Email,
		FreeText:      r.CustomFields,
	}
}

// StatusRequest is the HTTP request body for PATCH /applicants/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`

	parsed applicant.Status
}

func (r *StatusRequest) Validate() error {
	status, err := applicant.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "status must be one of PENDING, ASSIGNED, APPROVED, REJECTED")
	}
	r.parsed = status
	return nil
}

func (r *StatusRequest) ParsedStatus() applicant.Status { return r.parsed }

// NoteRequest is the HTTP request body for POST /applicants/{id}/notes.
type NoteRequest struct {
	Text string `json:"text"`
}

func (r *NoteRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "text is required")
	}
	if len(r.Text) > maxNoteLen {
		return dErrors.New(dErrors.CodeInvalidInput, "text is too long")
	}
	return nil
}

// CustomFieldsRequest is the HTTP request body for
// PUT /applicants/{id}/custom-fields.
type CustomFieldsRequest struct {
	Fields map[string]any `json:"fields"`
}

// AssignRequest is the HTTP request body for POST /applicants/{id}/assign.
type AssignRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

func (r *AssignRequest) Validate() error {
	if strings.TrimSpace(r.ReviewerID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reviewer_id is required")
	}
	return nil
}
