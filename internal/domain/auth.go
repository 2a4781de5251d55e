package domain

import "time"

// SubjectType is the "kind" claim of an access token. Only staff sign in.
type SubjectType string

const SubjectTypeStaff SubjectType = "STAFF"

// Token describes an issued access token without its signed form.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      StaffRole
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the token stays valid after now.
func (t Token) Remaining(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
