// Package extractor turns a chat message into an intent plus whatever
// appointment fields it mentions.
package extractor

import (
	"context"

	"github.com/soyeahso/agendabot/internal/domain"
)

// Intent classifies what the user wants.
type Intent string

const (
	IntentNone   Intent = ""
	IntentCreate Intent = "create"
	IntentQuery  Intent = "query"
	IntentModify Intent = "modify"
	IntentChat   Intent = "chat"
)

// Search is a lookup criterion: a field and a value to match it against.
type Search struct {
	Field domain.Field
	Value string
}

// Modify is an optional hint about which field the user wants to change.
type Modify struct {
	Field    domain.Field
	NewValue string
}

// Result is the structured reading of one message. Absent fields are simply
// missing from Fields; every present value is non-empty.
type Result struct {
	Intent Intent
	Fields map[domain.Field]string
	Search Search
	Modify Modify
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return r.Intent == IntentNone && len(r.Fields) == 0 && r.Search.Value == "" && r.Modify.Field == ""
}

// Field returns the extracted value for f, or "".
func (r Result) Field(f domain.Field) string {
	return r.Fields[f]
}

// Extractor reads intent and fields out of free text. history holds the
// recent turns of the same conversation, oldest first.
type Extractor interface {
	Extract(ctx context.Context, text string, history []domain.Turn) (Result, error)
}
