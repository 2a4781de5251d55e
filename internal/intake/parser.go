package intake

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedEmail is what could be read from a request email. Empty strings and
// nil pointers mean the field was absent or unreadable.
type ParsedEmail struct {
	Email              string
	FullName           string
	NationalID         string
	PassportNumber     string
	PassportCountry    string
	Phone              string
	DestinationCountry string
	DestinationCity    string
	DepartureDate      *time.Time
	ReturnDate         *time.Time
	Reason             string
	EventName          string
	Institution        string
	EstimatedAmount    *float64
	Currency           string
	CaseID             string
}

// HasTripData reports whether any trip field was found.
func (p ParsedEmail) HasTripData() bool {
	return p.DestinationCountry != "" || p.DestinationCity != "" || p.DepartureDate != nil ||
		p.ReturnDate != nil || p.Reason != "" || p.EventName != ""
}

type field int

const (
	fieldEmail field = iota
	fieldName
	fieldNationalID
	fieldPassport
	fieldPassportCountry
	fieldPhone
	fieldDestination
	fieldCountry
	fieldCity
	fieldDeparture
	fieldReturn
	fieldReason
	fieldEvent
	fieldInstitution
	fieldAmount
	fieldCurrency
)

// labels maps folded "Label:" prefixes to fields. Spanish and English labels
// are both accepted.
var labels = map[string]field{
	"email":                    fieldEmail,
	"e-mail":                   fieldEmail,
	"correo":                   fieldEmail,
	"correo electronico":       fieldEmail,
	"nombre":                   fieldName,
	"nombre completo":          fieldName,
	"name":                     fieldName,
	"full name":                fieldName,
	"cedula":                   fieldNationalID,
	"id":                       fieldNationalID,
	"identificacion":           fieldNationalID,
	"dni":                      fieldNationalID,
	"national id":              fieldNationalID,
	"pasaporte":                fieldPassport,
	"numero de pasaporte":      fieldPassport,
	"passport":                 fieldPassport,
	"passport number":          fieldPassport,
	"pais del pasaporte":       fieldPassportCountry,
	"passport country":         fieldPassportCountry,
	"nacionalidad":             fieldPassportCountry,
	"nationality":              fieldPassportCountry,
	"telefono":                 fieldPhone,
	"tel":                      fieldPhone,
	"celular":                  fieldPhone,
	"phone":                    fieldPhone,
	"destino":                  fieldDestination,
	"destination":              fieldDestination,
	"pais destino":             fieldCountry,
	"pais de destino":          fieldCountry,
	"country":                  fieldCountry,
	"ciudad":                   fieldCity,
	"ciudad destino":           fieldCity,
	"ciudad de destino":        fieldCity,
	"city":                     fieldCity,
	"salida":                   fieldDeparture,
	"fecha salida":             fieldDeparture,
	"fecha de salida":          fieldDeparture,
	"departure":                fieldDeparture,
	"departure date":           fieldDeparture,
	"retorno":                  fieldReturn,
	"regreso":                  fieldReturn,
	"fecha retorno":            fieldReturn,
	"fecha de retorno":         fieldReturn,
	"fecha de regreso":         fieldReturn,
	"return":                   fieldReturn,
	"return date":              fieldReturn,
	"motivo":                   fieldReason,
	"razon":                    fieldReason,
	"proposito":                fieldReason,
	"reason":                   fieldReason,
	"purpose":                  fieldReason,
	"evento":                   fieldEvent,
	"event":                    fieldEvent,
	"conferencia":              fieldEvent,
	"conference":               fieldEvent,
	"institucion":              fieldInstitution,
	"institucion organizadora": fieldInstitution,
	"organizador":              fieldInstitution,
	"organizer":                fieldInstitution,
	"institution":              fieldInstitution,
	"organizing institution":   fieldInstitution,
	"monto":                    fieldAmount,
	"monto estimado":           fieldAmount,
	"presupuesto":              fieldAmount,
	"amount":                   fieldAmount,
	"budget":                   fieldAmount,
	"estimated amount":         fieldAmount,
	"moneda":                   fieldCurrency,
	"currency":                 fieldCurrency,
}

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	caseIDPattern   = regexp.MustCompile(`(?i)CASE_ID\s*[=:]\s*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)
	amountPattern   = regexp.MustCompile(`^(?:([A-Za-z]{3})\b)?\s*\$?\s*([0-9][0-9.,]*)\s*(?:([A-Za-z]{3})\b)?`)
	currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	passportPattern = regexp.MustCompile(`^[A-Za-z0-9]+`)
	phonePattern    = regexp.MustCompile(`^[0-9\s\-()+.]+`)
	nonIDChars      = regexp.MustCompile(`[^0-9A-Za-z]`)
	datePatterns    = []struct {
		re      *regexp.Regexp
		y, m, d int
	}{
		{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), 1, 2, 3},
		{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), 3, 2, 1},
		{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`), 3, 2, 1},
	}
)

// ParseEmail extracts request fields from "Label: value" lines of the body.
// The first readable value of each field wins. A CASE_ID reference is also
// accepted in the subject. The requester email falls back to the sender.
func ParseEmail(subject, body, sender string) ParsedEmail {
	var parsed ParsedEmail
	seen := make(map[field]bool)

	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		key, value, ok := splitLabel(raw)
		if !ok {
			continue
		}
		f, known := labels[key]
		if !known || seen[f] {
			continue
		}
		if parsed.apply(f, value) {
			seen[f] = true
		}
	}

	if m := caseIDPattern.FindStringSubmatch(subject + "\n" + body); m != nil {
		parsed.CaseID = strings.ToLower(m[1])
	}
	if parsed.Email == "" {
		parsed.Email = NormalizeEmail(sender)
	}
	return parsed
}

// splitLabel splits "- Fecha de salida: 15/03/2024" into the folded label and
// the trimmed value.
func splitLabel(line string) (string, string, bool) {
	line = strings.TrimLeft(strings.TrimSpace(line), "-*•> \t")
	idx := strings.IndexAny(line, ":=")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.Join(strings.Fields(fold(line[:idx])), " ")
	value := strings.TrimSpace(line[idx+1:])
	if value == "" {
		return "", "", false
	}
	return key, value, true
}

func (p *ParsedEmail) apply(f field, value string) bool {
	switch f {
	case fieldEmail:
		m := emailPattern.FindString(value)
		if m == "" {
			return false
		}
		p.Email = NormalizeEmail(m)
	case fieldName:
		p.FullName = value
	case fieldNationalID:
		p.NationalID = NormalizeNationalID(value)
		return p.NationalID != ""
	case fieldPassport:
		m := passportPattern.FindString(value)
		if m == "" {
			return false
		}
		p.PassportNumber = strings.ToUpper(m)
	case fieldPassportCountry:
		p.PassportCountry = value
	case fieldPhone:
		m := strings.TrimSpace(phonePattern.FindString(value))
		if m == "" {
			return false
		}
		p.Phone = m
	case fieldDestination:
		country, city := splitDestination(value)
		p.DestinationCountry = country
		if city != "" {
			p.DestinationCity = city
		}
	case fieldCountry:
		p.DestinationCountry = value
	case fieldCity:
		p.DestinationCity = value
	case fieldDeparture:
		d, ok := ParseDate(value)
		if !ok {
			return false
		}
		p.DepartureDate = &d
	case fieldReturn:
		d, ok := ParseDate(value)
		if !ok {
			return false
		}
		p.ReturnDate = &d
	case fieldReason:
		p.Reason = value
	case fieldEvent:
		p.EventName = value
	case fieldInstitution:
		p.Institution = value
	case fieldAmount:
		amount, currency, ok := parseAmount(value)
		if !ok {
			return false
		}
		p.EstimatedAmount = &amount
		if currency != "" && p.Currency == "" {
			p.Currency = currency
		}
	case fieldCurrency:
		if !currencyPattern.MatchString(value) {
			return false
		}
		p.Currency = strings.ToUpper(value)
	}
	return true
}

// splitDestination reads "País, Ciudad" or "País; Ciudad".
func splitDestination(value string) (string, string) {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(value), ""
}

func parseAmount(value string) (float64, string, bool) {
	m := amountPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, "", false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil || amount < 0 {
		return 0, "", false
	}
	currency := m[3]
	if currency == "" {
		currency = m[1]
	}
	return amount, strings.ToUpper(currency), true
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNationalID strips dashes, spaces and other separators.
func NormalizeNationalID(id string) string {
	return strings.ToUpper(nonIDChars.ReplaceAllString(id, ""))
}

// ParseDate reads YYYY-MM-DD, DD/MM/YYYY and DD-MM-YYYY. Day-first is assumed
// for the slash and dash forms. Impossible dates such as 31/02 are rejected.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if fields := strings.Fields(value); len(fields) > 0 {
		value = fields[0]
	}
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[p.y])
		month, _ := strconv.Atoi(m[p.m])
		day, _ := strconv.Atoi(m[p.d])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Year() != year || int(t.Month()) != month || t.Day() != day {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
