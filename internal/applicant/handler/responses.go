package handler

import (
	"time"

	"intake/internal/applicant"
)

// SummaryResponse is the no-PII projection returned by listings and
// workflow operations.
type SummaryResponse struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	City       string    `json:"city,omitempty"`
	Zip        string    `json:"zip,omitempty"`
	Status     string    `json:"status"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ViewResponse is the decrypted record returned by GET /applicants/{id}.
type ViewResponse struct {
	ID            string         `json:"id"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	City          string         `json:"city,omitempty"`
	Zip           string         `json:"zip,omitempty"`
	StreetAddress string         `json:"street_address,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	CustomFields  map[string]any `json:"custom_fields,omitempty"`
	Status        string         `json:"status"`
	AssignedTo    string         `json:"assigned_to,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ReclaimResponse reports the bulk reclaim count.
type ReclaimResponse struct {
	Count int `json:"count"`
}

// FromSummary converts a domain summary to an HTTP response.
func FromSummary(s applicant.Summary) SummaryResponse {
	resp := SummaryResponse{
		ID:        s.ID.String(),
		FirstName: s.FirstName,
		LastName:  s.LastName,
		City:      s.City,
		Zip:       s.Zip,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.AssignedTo != nil {
		resp.AssignedTo = s.AssignedTo.String()
	}
	return resp
}

// FromSummaries converts a slice, keeping an empty JSON array over null.
func FromSummaries(summaries []applicant.Summary) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, FromSummary(s))
	}
	return out
}

// FromView converts a decrypted view to an HTTP response.
func FromView(v *applicant.View) *ViewResponse {
	resp := &ViewResponse{
		ID:            v.ID.String(),
		FirstName:     v.FirstName,
		LastName:      v.LastName,
		City:          v.City,
		Zip:           v.Zip,
		StreetAddress: v.StreetAddress,
		Phone:         v.Phone,
		Email:         v.Email,
		CustomFields:  v.CustomFields,
		Status:        string(v.Status),
		Notes:         v.Notes,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if v.AssignedTo != nil {
		resp.AssignedTo = v.AssignedTo.String()
	}
	return resp
}
