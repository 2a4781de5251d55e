package domain

import "time"

// DocumentKind is the semantic type inferred for an uploaded file.
type DocumentKind string

const (
	DocumentKindNationalID       DocumentKind = "NATIONAL_ID"
	DocumentKindPassport         DocumentKind = "PASSPORT"
	DocumentKindPhoto            DocumentKind = "PHOTO"
	DocumentKindInvitationLetter DocumentKind = "INVITATION_LETTER"
	DocumentKindAgenda           DocumentKind = "AGENDA"
	DocumentKindTicket           DocumentKind = "TICKET"
	DocumentKindOther            DocumentKind = "OTHER"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindNationalID, DocumentKindPassport, DocumentKindPhoto,
		DocumentKindInvitationLetter, DocumentKindAgenda, DocumentKindTicket, DocumentKindOther:
		return true
	}
	return false
}

// Document is an uploaded file owned by exactly one of a Profile or a Case.
type Document struct {
	ID                   string
	ProfileID            *string
	CaseID               *string
	Kind                 DocumentKind
	OriginalFilename     string
	MediaType            string
	SizeBytes            int64
	BlobURL              string
	BlobPathname         string
	ChecksumSHA256       string
	SourceEmailMessageID *string
	CreatedAt            time.Time
}
