package certificates

import (
	"fmt"
	"strconv"
	"time"
)

// Fixed es-locale date layout: zero-padded day and month, numeric year.
const displayDateLayout = "02/01/2006"

const (
	certificateTitle = "CONSTANCIA DE PARTICIPACIÓN"
	leadInPhrase     = "Se otorga la presente constancia a:"
	signatureCaption = "Firma del organizador"
	validationNote   = "Este documento es válido como constancia de participación y puede cotejarse con el identificador indicado."
)

// FormatDisplayDate renders a calendar date as dd/mm/yyyy.
func FormatDisplayDate(value time.Time) string {
	return value.Format(displayDateLayout)
}

// roleParagraph selects the role-dependent wording. Unknown roles take the
// Asistente branch rather than failing.
func roleParagraph(role Role, eventName string, durationHours int) string {
	hours := strconv.Itoa(durationHours)
	switch role {
	case RolePonente:
		return fmt.Sprintf("ha participado como PONENTE en el evento \"%s\", presentando su conocimiento y experiencia durante %s horas.", eventName, hours)
	case RoleOrganizador:
		return fmt.Sprintf("ha participado como ORGANIZADOR en el evento \"%s\", coordinando su planificación y desarrollo durante %s horas.", eventName, hours)
	default:
		return fmt.Sprintf("ha participado como ASISTENTE en el evento \"%s\", cumpliendo con una duración de %s horas.", eventName, hours)
	}
}

func completionSentence(eventDate time.Time, eventLocation string) string {
	return fmt.Sprintf("Evento realizado el %s en %s.", FormatDisplayDate(eventDate), eventLocation)
}

func footerLine(certificateID string, issuedOn time.Time) string {
	return fmt.Sprintf("ID: %s  |  Fecha de emisión: %s", certificateID, FormatDisplayDate(issuedOn))
}
