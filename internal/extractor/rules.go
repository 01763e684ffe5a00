package extractor

import (
	"context"
	"strings"
	"unicode"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/textfold"
)

var (
	modifyVerbs = textfold.NewSet("modificar", "modifica", "cambiar", "cambia", "editar", "edita",
		"actualizar", "actualiza", "reprogramar", "reprograma", "mover", "mueve")
	queryWords = textfold.NewSet("buscar", "busca", "citas", "mostrar", "muestra", "listar", "lista",
		"consultar", "consulta", "ver", "pendientes")
	createWords = textfold.NewSet("agendar", "agenda", "agendame", "crear", "crea", "nueva", "nuevo",
		"registrar", "registra", "programar", "programa", "cita", "reunion", "recordatorio",
		"recuerdame", "anota", "anotar")

	nameMarkers    = textfold.NewSet("cliente", "clienta")
	withMarkers    = textfold.NewSet("con")
	projectMarkers = textfold.NewSet("proyecto")
	searchMarkers  = textfold.NewSet("buscar", "busca")
	numberMarkers  = textfold.NewSet("numero", "telefono", "tel", "cel", "celular", "whatsapp")
	notesMarkers   = textfold.NewSet("observaciones", "observacion", "obs", "nota", "notas", "comentario", "comentarios")
	articles       = textfold.NewSet("el", "la", "los", "las", "su")

	stopWords = textfold.NewSet("proyecto", "para", "el", "la", "los", "las", "en", "a", "al", "del", "de",
		"hoy", "manana", "pasado", "modalidad", "presencial", "virtual", "online", "remota", "remoto",
		"telefonica", "llamada", "numero", "telefono", "cel", "celular", "whatsapp", "y", "sobre",
		"obs", "nota", "notas", "observaciones", "cliente", "con", "por", "via", "hora", "fecha", "dia",
		"cita", "citas", "reunion", "mis", "todas", "que")

	modalities = map[string]string{
		"presencial": "presencial",
		"virtual":    "virtual", "online": "virtual", "zoom": "virtual", "meet": "virtual",
		"remota": "virtual", "remoto": "virtual", "videollamada": "virtual",
		"telefonica": "telefónica", "telefonico": "telefónica", "llamada": "telefónica",
	}
)

// Rules is a keyword extractor for deployments without a language model.
type Rules struct {
	aliases *domain.AliasTable
	norm    *datetime.Normalizer
}

// NewRules creates a rule-based extractor.
func NewRules(aliases *domain.AliasTable, norm *datetime.Normalizer) *Rules {
	return &Rules{aliases: aliases, norm: norm}
}

type words struct {
	orig   []string
	folded []string
}

func splitWords(text string) words {
	orig := strings.Fields(text)
	w := words{orig: orig, folded: make([]string, len(orig))}
	for i, o := range orig {
		w.folded[i] = textfold.Token(o)
	}
	return w
}

// Extract implements Extractor. It never returns an error.
func (r *Rules) Extract(_ context.Context, text string, _ []domain.Turn) (Result, error) {
	w := splitWords(text)
	res := Result{Fields: make(map[domain.Field]string)}

	if v := r.clientName(w); v != "" {
		res.Fields[domain.FieldClientName] = v
	}
	if v := w.after(projectMarkers, 4); v != "" {
		res.Fields[domain.FieldProject] = v
	}
	if v := modality(w); v != "" {
		res.Fields[domain.FieldModality] = v
	}
	if v := phone(w); v != "" {
		res.Fields[domain.FieldClientNumber] = v
	}
	if v := notes(w); v != "" {
		res.Fields[domain.FieldNotes] = v
	}
	_, hasDate := r.norm.Normalize(text)
	if hasDate {
		res.Fields[domain.FieldOccursAt] = strings.TrimSpace(text)
	}

	res.Intent = intent(w)
	switch res.Intent {
	case IntentQuery, IntentModify:
		res.Search = search(w, res.Fields, hasDate, text)
		if res.Intent == IntentModify {
			res.Modify.Field = r.modifyHint(w)
		}
	}
	if len(res.Fields) == 0 {
		res.Fields = nil
	}
	return res, nil
}

func intent(w words) Intent {
	has := func(set textfold.Set) bool {
		for _, f := range w.folded {
			if set.Has(f) {
				return true
			}
		}
		return false
	}
	switch {
	case has(modifyVerbs):
		return IntentModify
	case has(queryWords):
		return IntentQuery
	case has(createWords):
		return IntentCreate
	case len(w.orig) == 0:
		return IntentNone
	default:
		return IntentChat
	}
}

func (r *Rules) clientName(w words) string {
	if v := w.after(nameMarkers, 3); v != "" {
		return v
	}
	return w.after(withMarkers, 3)
}

// after returns up to max original words following the first marker, stopping
// at a stop word or anything containing a digit.
func (w words) after(markers textfold.Set, max int) string {
	for i, f := range w.folded {
		if !markers.Has(f) {
			continue
		}
		var out []string
		for j := i + 1; j < len(w.orig) && len(out) < max; j++ {
			if stopWords.Has(w.folded[j]) || w.folded[j] == "" || hasDigit(w.folded[j]) {
				break
			}
			out = append(out, trimPunct(w.orig[j]))
			if strings.ContainsAny(w.orig[j], ",;.") {
				break
			}
		}
		if len(out) > 0 {
			return strings.Join(out, " ")
		}
	}
	return ""
}

func modality(w words) string {
	for i, f := range w.folded {
		if f == "modalidad" && i+1 < len(w.orig) {
			if m, ok := modalities[w.folded[i+1]]; ok {
				return m
			}
			return trimPunct(w.orig[i+1])
		}
	}
	for _, f := range w.folded {
		if m, ok := modalities[f]; ok {
			return m
		}
	}
	return ""
}

func phone(w words) string {
	for i, f := range w.folded {
		if !numberMarkers.Has(f) {
			continue
		}
		var b strings.Builder
		for j := i + 1; j < len(w.orig); j++ {
			tok := trimPunct(w.orig[j])
			if tok == "" || strings.Trim(tok, "+-()0123456789") != "" {
				break
			}
			b.WriteString(tok)
		}
		if digits(b.String()) >= 6 {
			return b.String()
		}
	}
	return ""
}

func notes(w words) string {
	for i, f := range w.folded {
		if notesMarkers.Has(f) && i+1 < len(w.orig) {
			return strings.TrimSpace(strings.Join(w.orig[i+1:], " "))
		}
	}
	return ""
}

func search(w words, fields map[domain.Field]string, hasDate bool, text string) Search {
	if v := w.after(searchMarkers, 3); v != "" {
		return Search{Field: domain.FieldClientName, Value: v}
	}
	if v := fields[domain.FieldClientName]; v != "" {
		return Search{Field: domain.FieldClientName, Value: v}
	}
	if v := fields[domain.FieldProject]; v != "" {
		return Search{Field: domain.FieldProject, Value: v}
	}
	if hasDate {
		return Search{Field: domain.FieldOccursAt, Value: strings.TrimSpace(text)}
	}
	return Search{}
}

// modifyHint reads "cambiar la fecha" style phrases.
func (r *Rules) modifyHint(w words) domain.Field {
	for i, f := range w.folded {
		if !modifyVerbs.Has(f) {
			continue
		}
		j := i + 1
		if j < len(w.folded) && articles.Has(w.folded[j]) {
			j++
		}
		if j < len(w.folded) {
			if field, ok := r.aliases.Resolve(w.folded[j]); ok {
				return field
			}
		}
	}
	return ""
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '+' && r != '(' && r != ')'
	})
}

func hasDigit(s string) bool {
	return digits(s) > 0
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
