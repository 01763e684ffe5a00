package dialogue

import (
	"time"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
)

const (
	msgCancelled     = "Listo, cancelé la operación en curso."
	msgBadDate       = "No entendí la fecha."
	msgSaveFailed    = "No pude guardar la cita en este momento. Inténtalo de nuevo respondiendo «sí»."
	msgUpdateFailed  = "No pude actualizar la cita en este momento. Inténtalo de nuevo respondiendo «sí»."
	msgSummaryHeader = "📝 *Resumen de la cita:*"
	msgConfirmPrompt = "¿Confirmas? Responde «sí» para guardar o «cancelar» para descartar."
	msgCreated       = "✅ Cita con %s guardada para el %s."

	msgQueryFailed  = "No pude consultar las citas en este momento."
	msgNoneInRange  = "No hay citas encontradas para ese rango de fechas."
	msgNoClient     = "No encontré clientes llamados '%s'."
	msgNoneToModify = "No encontré citas que coincidan."
	msgDayHeader    = "📋 *Citas para %s:*"
	msgRangeHeader  = "📋 *Citas del %s al %s:*"
	msgMatchHeader  = "📋 *Citas de '%s':*"
	msgMore         = "… y %d más."
	msgValuesHeader = "📋 *Columna «%s»:*"
	msgNoValues     = "No hay datos en la columna «%s»."

	msgPickOne      = "Encontré varias citas. Responde con el número de la que quieres modificar:"
	msgPickRange    = "Responde con un número del 1 al %d."
	msgNarrow       = "Si no aparece, escribe «cancelar» y búscala por cliente o fecha."
	msgWhichField   = "¿Qué campo quieres cambiar? (%s)"
	msgFieldHint    = "¿Quieres cambiar %s?"
	msgUnknownField = "No reconozco ese campo. Los campos son: %s."
	msgNewValue     = "¿Cuál es el nuevo valor para %s?"
	msgConfirmEdit  = "¿Confirmas cambiar %s a «%s»? Responde «sí» para aplicar el cambio."
	msgUpdated      = "✅ Cita actualizada: %s ahora es «%s»."
	msgDiscarded    = "De acuerdo, no cambié nada."
	msgGone         = "Esa cita ya no existe."
)

var questions = map[domain.Field]string{
	domain.FieldClientName: "¿Cuál es el nombre del cliente?",
	domain.FieldProject:    "¿Para qué proyecto es la cita?",
	domain.FieldModality:   "¿La cita es presencial, virtual o telefónica?",
	domain.FieldOccursAt:   "¿Qué día y a qué hora? (por ejemplo: 2025-06-10 15:00 o mañana 3pm)",
}

func question(f domain.Field) string {
	if q, ok := questions[f]; ok {
		return q
	}
	return "¿" + f.Label() + "?"
}

func (m *Manager) when(t time.Time) string {
	return t.In(m.loc()).Format(datetime.Layout)
}
