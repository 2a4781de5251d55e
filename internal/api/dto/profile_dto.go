package dto

import "time"

// ProfileUpsertRequest payload for POST /profiles/upsert.
type ProfileUpsertRequest struct {
	Email           string `json:"email"`
	NationalID      string `json:"national_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	FullName        string `json:"full_name"`
	Phone           string `json:"phone"`
	Department      string `json:"department"`
	JobTitle        string `json:"job_title"`
	PassportNumber  string `json:"passport_number"`
	PassportCountry string `json:"passport_country"`
}

// ProfileResponse describes a requester profile.
type ProfileResponse struct {
	ID              string    `json:"id"`
	PrimaryEmail    *string   `json:"primary_email"`
	NationalID      *string   `json:"national_id"`
	FullName        *string   `json:"full_name"`
	Phone           *string   `json:"phone"`
	Department      *string   `json:"department"`
	JobTitle        *string   `json:"job_title"`
	PassportNumber  *string   `json:"passport_number"`
	PassportCountry *string   `json:"passport_country"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProfileUpsertResponse reports how the resolver treated the request.
type ProfileUpsertResponse struct {
	Profile  ProfileResponse `json:"profile"`
	Outcome  string          `json:"outcome"`
	IsNew    bool            `json:"is_new"`
	Conflict map[string]any  `json:"conflict,omitempty"`
}

// ProfileDetailResponse is a profile with its base documents and cases.
type ProfileDetailResponse struct {
	Profile       ProfileResponse      `json:"profile"`
	BaseDocuments []DocumentResponse   `json:"base_documents"`
	Cases         []CaseResponse       `json:"cases"`
	Audit         []AuditEntryResponse `json:"audit"`
}
