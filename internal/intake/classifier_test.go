package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		filename  string
		mediaType string
		want      domain.DocumentKind
	}{
		{"cedula.pdf", "application/pdf", domain.DocumentKindNationalID},
		{"CÉDULA_FRONTAL.jpg", "image/jpeg", domain.DocumentKindNationalID},
		{"ID-front.png", "image/png", domain.DocumentKindNationalID},
		{"identificación.pdf", "application/pdf", domain.DocumentKindNationalID},
		{"passport.pdf", "application/pdf", domain.DocumentKindPassport},
		{"pasaporte_scan.jpg", "image/jpeg", domain.DocumentKindPassport},
		{"foto.jpg", "image/jpeg", domain.DocumentKindPhoto},
		{"photo.png", "image/png", domain.DocumentKindPhoto},
		{"IMG_2034.jpeg", "image/jpeg", domain.DocumentKindPhoto},
		{"invitacion.pdf", "application/pdf", domain.DocumentKindInvitationLetter},
		{"carta_invitacion.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", domain.DocumentKindInvitationLetter},
		{"Agenda del foro.pdf", "application/pdf", domain.DocumentKindAgenda},
		{"boleto-vuelo.pdf", "application/pdf", domain.DocumentKindTicket},
		{"reservation.pdf", "application/pdf", domain.DocumentKindTicket},
		{"boarding_pass.pdf", "application/pdf", domain.DocumentKindTicket},
		{"Boarding Pass SDQ-SCL.png", "image/png", domain.DocumentKindTicket},
		{"pase de abordar.pdf", "application/pdf", domain.DocumentKindTicket},
		{"pass-scan.pdf", "application/pdf", domain.DocumentKindPassport},
		{"scan001.png", "image/png", domain.DocumentKindPhoto},
		{"video_guide.pdf", "application/pdf", domain.DocumentKindOther},
		{"notes.txt", "text/plain", domain.DocumentKindOther},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.filename, tc.mediaType))
		})
	}
}

func TestIsBaseKind(t *testing.T) {
	for _, kind := range []domain.DocumentKind{domain.DocumentKindNationalID, domain.DocumentKindPassport, domain.DocumentKindPhoto} {
		assert.True(t, IsBaseKind(kind), kind)
	}
	for _, kind := range []domain.DocumentKind{domain.DocumentKindInvitationLetter, domain.DocumentKindAgenda, domain.DocumentKindTicket, domain.DocumentKindOther} {
		assert.False(t, IsBaseKind(kind), kind)
	}
}

func TestResolveKind(t *testing.T) {
	assert.Equal(t, domain.DocumentKindAgenda, ResolveKind("agenda", "foto.jpg", "image/jpeg"))
	assert.Equal(t, domain.DocumentKindPhoto, ResolveKind("", "foto.jpg", "image/jpeg"))
	assert.Equal(t, domain.DocumentKindPassport, ResolveKind("SELFIE", "passport.pdf", "application/pdf"))
}
