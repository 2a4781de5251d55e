package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "test@example.com", NormalizeEmail("  Test@Example.COM  "))
}

func TestNormalizeNationalID(t *testing.T) {
	assert.Equal(t, "00112345678", NormalizeNationalID("001-1234567-8"))
	assert.Equal(t, "00112345678", NormalizeNationalID(" 001 1234567 8 "))
}

func TestParseEmailFields(t *testing.T) {
	body := "Email: Juan.Perez@Example.com\r\n" +
		"Nombre: Juan Pérez\r\n" +
		"Cédula: 001-1234567-8\r\n" +
		"Pasaporte: rd123456\r\n" +
		"Nacionalidad: Dominicana\r\n" +
		"Teléfono: +1 (809) 555-0101\r\n" +
		"Destino: Estados Unidos, Nueva York\r\n" +
		"Fecha de salida: 15/03/2024\r\n" +
		"Fecha de retorno: 2024-03-20\r\n" +
		"Motivo: Capacitación regional\r\n" +
		"Evento: Foro de Aduanas\r\n" +
		"Institución organizadora: OMA\r\n" +
		"Monto: 1,500.50 usd\r\n"

	parsed := ParseEmail("Solicitud de viaje", body, "sender@example.com")

	assert.Equal(t, "juan.perez@example.com", parsed.Email)
	assert.Equal(t, "Juan Pérez", parsed.FullName)
	assert.Equal(t, "00112345678", parsed.NationalID)
	assert.Equal(t, "RD123456", parsed.PassportNumber)
	assert.Equal(t, "Dominicana", parsed.PassportCountry)
	assert.Equal(t, "+1 (809) 555-0101", parsed.Phone)
	assert.Equal(t, "Estados Unidos", parsed.DestinationCountry)
	assert.Equal(t, "Nueva York", parsed.DestinationCity)
	require.NotNil(t, parsed.DepartureDate)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *parsed.DepartureDate)
	require.NotNil(t, parsed.ReturnDate)
	assert.Equal(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), *parsed.ReturnDate)
	assert.Equal(t, "Capacitación regional", parsed.Reason)
	assert.Equal(t, "Foro de Aduanas", parsed.EventName)
	assert.Equal(t, "OMA", parsed.Institution)
	require.NotNil(t, parsed.EstimatedAmount)
	assert.InDelta(t, 1500.50, *parsed.EstimatedAmount, 0.001)
	assert.Equal(t, "USD", parsed.Currency)
	assert.True(t, parsed.HasTripData())
}

func TestParseEmailFallsBackToSender(t *testing.T) {
	parsed := ParseEmail("Test", "No email here", " Sender@Example.com ")
	assert.Equal(t, "sender@example.com", parsed.Email)
	assert.False(t, parsed.HasTripData())
}

func TestParseEmailCaseReference(t *testing.T) {
	id := "3f2b8c1e-9a4d-4c1b-8e7f-1a2b3c4d5e6f"
	parsed := ParseEmail("RE: documentos CASE_ID="+id, "Adjunto el pasaje.", "a@example.com")
	assert.Equal(t, id, parsed.CaseID)

	parsed = ParseEmail("RE", "case_id: "+id, "a@example.com")
	assert.Equal(t, id, parsed.CaseID)
}

func TestParseEmailIgnoresUnreadableValues(t *testing.T) {
	body := "Fecha de salida: pronto\nFecha salida: 01-04-2025\nMonto: por definir\nMoneda: eur"
	parsed := ParseEmail("", body, "a@example.com")
	require.NotNil(t, parsed.DepartureDate)
	assert.Equal(t, time.April, parsed.DepartureDate.Month())
	assert.Nil(t, parsed.EstimatedAmount)
	assert.Equal(t, "EUR", parsed.Currency)
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("15/03/2024")
	require.True(t, ok)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 15, d.Day())

	_, ok = ParseDate("31/02/2024")
	assert.False(t, ok)
	_, ok = ParseDate("2024/03/15")
	assert.False(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
}
