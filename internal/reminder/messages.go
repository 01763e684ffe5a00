package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
)

func reminderText(a *domain.Appointment, delta time.Duration, loc *time.Location) string {
	at := a.OccursAt.In(loc).Format("15:04")
	detail := fmt.Sprintf("%s (proyecto %s, %s)", a.ClientName, a.Project, a.Modality)
	switch {
	case delta < 0:
		return fmt.Sprintf("⏰ Recordatorio: en %s tienes cita con %s a las %s.", humanize(-delta), detail, at)
	case delta == 0:
		return fmt.Sprintf("🔔 Es hora de tu cita con %s.", detail)
	default:
		return fmt.Sprintf("📌 Tu cita con %s empezó hace %s.", detail, humanize(delta))
	}
}

func followUpText(a *domain.Appointment, loc *time.Location) string {
	return fmt.Sprintf("📝 ¿Cómo te fue en la cita con %s (proyecto %s) de las %s? "+
		"Si quieres dejar observaciones, escribe «modificar la cita con %s».",
		a.ClientName, a.Project, a.OccursAt.In(loc).Format("15:04"), a.ClientName)
}

// humanize renders d in Spanish hours and minutes, e.g. "1 hora y 30 minutos".
func humanize(d time.Duration) string {
	d = d.Round(time.Minute)
	h, m := int(d/time.Hour), int(d%time.Hour/time.Minute)
	var parts []string
	if h > 0 {
		parts = append(parts, plural(h, "hora", "horas"))
	}
	if m > 0 || h == 0 {
		parts = append(parts, plural(m, "minuto", "minutos"))
	}
	return strings.Join(parts, " y ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
