package domain

import (
	"strings"
	"unicode"

	"github.com/soyeahso/agendabot/internal/textfold"
)

// DefaultAliases maps every field to the words users call it by.
func DefaultAliases() map[Field][]string {
	return map[Field][]string{
		FieldClientName:   {"client_name", "cliente", "nombre", "nombre del cliente", "clienta"},
		FieldClientNumber: {"client_number", "numero", "telefono", "celular", "cel", "whatsapp", "numero del cliente"},
		FieldProject:      {"project", "proyecto"},
		FieldModality:     {"modality", "modalidad", "tipo", "formato"},
		FieldOccursAt:     {"occurs_at", "fecha", "hora", "fecha y hora", "dia", "horario", "cuando"},
		FieldNotes:        {"notes", "notas", "nota", "observaciones", "observacion", "obs", "comentarios"},
	}
}

// DefaultListAliases are the plural words that ask for every recorded value
// of a field, as in "clientes" or "proyectos".
func DefaultListAliases() map[Field][]string {
	return map[Field][]string{
		FieldClientName:   {"clientes", "clientas", "nombres"},
		FieldClientNumber: {"numeros", "telefonos", "celulares"},
		FieldProject:      {"proyectos"},
		FieldModality:     {"modalidades", "formatos"},
		FieldOccursAt:     {"fechas", "horarios"},
		FieldNotes:        {"observaciones", "notas", "comentarios"},
	}
}

// listFillers may precede a plural alias: "ver clientes", "lista de proyectos".
var listFillers = map[string]bool{
	"ver": true, "lista": true, "listar": true, "listado": true, "mostrar": true,
	"muestrame": true, "dame": true, "de": true, "mis": true, "los": true,
	"las": true, "todos": true, "todas": true,
}

type alias struct {
	words string
	field Field
}

// AliasTable resolves loose user wording to a canonical field.
type AliasTable struct {
	aliases []alias
	lists   map[string]Field
}

// NewAliasTable builds a table from the defaults plus extra, which may add
// words to any field. Unknown fields in extra are ignored.
func NewAliasTable(extra map[Field][]string) *AliasTable {
	t := &AliasTable{lists: map[string]Field{}}
	seen := map[string]bool{}
	add := func(f Field, words []string) {
		for _, w := range words {
			key := normalizeWords(w)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			t.aliases = append(t.aliases, alias{words: key, field: f})
		}
	}
	defaults, plurals := DefaultAliases(), DefaultListAliases()
	for _, f := range AllFields {
		add(f, defaults[f])
		add(f, extra[f])
		add(f, plurals[f])
		for _, w := range plurals[f] {
			t.lists[normalizeWords(w)] = f
		}
	}
	return t
}

// ListField reports whether text asks for the values of a whole field: a
// plural alias, optionally preceded by filler words, and nothing else.
func (t *AliasTable) ListField(text string) (Field, bool) {
	words := strings.Fields(normalizeWords(text))
	for len(words) > 1 && listFillers[words[0]] {
		words = words[1:]
	}
	if len(words) != 1 {
		return "", false
	}
	f, ok := t.lists[words[0]]
	return f, ok
}

// Resolve finds the field text refers to. The text matches an alias when it
// contains the alias as whole words, or when the text is a fragment of the
// alias at least three letters long. The longest matching alias wins.
func (t *AliasTable) Resolve(text string) (Field, bool) {
	in := normalizeWords(text)
	if in == "" {
		return "", false
	}
	padded := " " + in + " "

	var best alias
	for _, a := range t.aliases {
		if a.words == in {
			return a.field, true
		}
		hit := strings.Contains(padded, " "+a.words+" ")
		if !hit && len(in) >= 3 {
			hit = strings.Contains(a.words, in)
		}
		if hit && len(a.words) > len(best.words) {
			best = a
		}
	}
	if best.field == "" {
		return "", false
	}
	return best.field, true
}

// Names lists the canonical field labels, for prompts and rejections.
func (t *AliasTable) Names() []string {
	out := make([]string, len(AllFields))
	for i, f := range AllFields {
		out[i] = f.Label()
	}
	return out
}

// normalizeWords folds s and collapses everything but letters, digits and
// underscores into single spaces.
func normalizeWords(s string) string {
	words := strings.FieldsFunc(textfold.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	return strings.Join(words, " ")
}
