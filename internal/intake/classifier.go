package intake

import (
	"strings"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// rule maps filename keywords to a kind. Substrings are matched anywhere in
// the folded filename; words must equal a whole filename token, which keeps
// short keywords such as "id" from matching inside "video" or "guide".
type rule struct {
	kind       domain.DocumentKind
	substrings []string
	words      []string
}

// Order matters: identity documents win over photos, so a scan named
// "CÉDULA_FRONTAL.jpg" is a national ID even though it is an image.
var rules = []rule{
	{
		kind:       domain.DocumentKindNationalID,
		substrings: []string{"cedula", "identificacion", "identidad", "national_id", "nationalid"},
		words:      []string{"id", "dni", "cid"},
	},
	{
		// Boarding passes are checked before the whole-word "pass" below.
		kind:       domain.DocumentKindTicket,
		substrings: []string{"boarding", "abordar", "abordaje"},
	},
	{
		kind:       domain.DocumentKindPassport,
		substrings: []string{"pasaporte", "passport"},
		words:      []string{"pass"},
	},
	{
		kind:       domain.DocumentKindPhoto,
		substrings: []string{"foto", "photo", "imagen", "picture", "retrato", "selfie"},
		words:      []string{"img", "pic"},
	},
	{
		kind:       domain.DocumentKindInvitationLetter,
		substrings: []string{"invitacion", "invitation", "carta", "letter"},
	},
	{
		kind:       domain.DocumentKindAgenda,
		substrings: []string{"agenda", "schedule", "programa", "program"},
	},
	{
		kind:       domain.DocumentKindTicket,
		substrings: []string{"ticket", "boleto", "vuelo", "flight", "reserva", "reservation", "itinerar", "pasaje"},
	},
}

// Classify infers a document kind from a filename and media type. It is pure
// and used for both email attachments and form uploads.
func Classify(filename, mediaType string) domain.DocumentKind {
	name := fold(filename)
	words := tokens(name)
	for _, r := range rules {
		if r.matches(name, words) {
			return r.kind
		}
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/") {
		return domain.DocumentKindPhoto
	}
	return domain.DocumentKindOther
}

func (r rule) matches(name string, words []string) bool {
	for _, s := range r.substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	for _, w := range r.words {
		for _, tok := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// IsBaseKind reports whether documents of this kind belong to the Profile
// rather than to a single Case.
func IsBaseKind(kind domain.DocumentKind) bool {
	switch kind {
	case domain.DocumentKindNationalID, domain.DocumentKindPassport, domain.DocumentKindPhoto:
		return true
	}
	return false
}

// ResolveKind honors a client-declared kind when it is known and falls back to
// Classify otherwise.
func ResolveKind(declared, filename, mediaType string) domain.DocumentKind {
	kind := domain.DocumentKind(strings.ToUpper(strings.TrimSpace(declared)))
	if kind.Valid() {
		return kind
	}
	return Classify(filename, mediaType)
}
