package domain

import "time"

// Profile is a deduplicated requester identity, reachable by primary email
// and/or national ID.
type Profile struct {
	ID              string
	PrimaryEmail    *string
	NationalID      *string
	FullName        *string
	Phone           *string
	Department      *string
	JobTitle        *string
	PassportNumber  *string
	PassportCountry *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a copy that does not share pointer fields with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.PrimaryEmail = cloneString(p.PrimaryEmail)
	out.NationalID = cloneString(p.NationalID)
	out.FullName = cloneString(p.FullName)
	out.Phone = cloneString(p.Phone)
	out.Department = cloneString(p.Department)
	out.JobTitle = cloneString(p.JobTitle)
	out.PassportNumber = cloneString(p.PassportNumber)
	out.PassportCountry = cloneString(p.PassportCountry)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
