package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/textfold"
)

var intentWords = map[string]Intent{
	"create": IntentCreate, "crear": IntentCreate, "agendar": IntentCreate, "new": IntentCreate,
	"query": IntentQuery, "consultar": IntentQuery, "buscar": IntentQuery, "search": IntentQuery, "list": IntentQuery,
	"modify": IntentModify, "modificar": IntentModify, "update": IntentModify, "editar": IntentModify,
	"chat": IntentChat, "other": IntentChat, "otro": IntentChat, "unknown": IntentChat,
}

// ParseResult reads a model reply into a Result. It never fails: code fences
// and surrounding prose are dropped, broken JSON is repaired, non-string
// scalars are stringified, and anything still unreadable yields an empty
// Result.
func ParseResult(raw string, aliases *domain.AliasTable) Result {
	obj, ok := decodeObject(raw)
	if !ok {
		return Result{}
	}

	res := Result{Intent: parseIntent(scalar(obj["intent"]))}

	fields, _ := obj["fields"].(map[string]any)
	if fields == nil {
		// Some models flatten the fields into the top-level object.
		fields = obj
	}
	for k, v := range fields {
		f, ok := resolveKey(k, aliases)
		if !ok {
			continue
		}
		if s := scalar(v); s != "" {
			if res.Fields == nil {
				res.Fields = make(map[domain.Field]string)
			}
			res.Fields[f] = s
		}
	}

	if search, ok := obj["search"].(map[string]any); ok {
		if f, ok := resolveKey(scalar(search["field"]), aliases); ok {
			res.Search = Search{Field: f, Value: scalar(search["value"])}
		}
	}
	if mod, ok := obj["modify"].(map[string]any); ok {
		if f, ok := resolveKey(scalar(mod["field"]), aliases); ok {
			res.Modify = Modify{Field: f, NewValue: scalar(firstOf(mod, "new_value", "newValue", "value"))}
		}
	}
	return res
}

// decodeObject isolates the outermost JSON object in raw and decodes it,
// repairing it first if needed.
func decodeObject(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	if start < 0 {
		return nil, false
	}
	s = s[start:]
	if end := strings.LastIndex(s, "}"); end >= 0 {
		s = s[:end+1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, true
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

func resolveKey(k string, aliases *domain.AliasTable) (domain.Field, bool) {
	if f := domain.Field(strings.TrimSpace(k)); f.Valid() {
		return f, true
	}
	if aliases == nil || k == "" {
		return "", false
	}
	// Structural keys of a flattened reply are not field names.
	switch textfold.Token(k) {
	case "intent", "search", "modify", "fields":
		return "", false
	}
	return aliases.Resolve(k)
}

func parseIntent(s string) Intent {
	if s == "" {
		return IntentNone
	}
	if in, ok := intentWords[textfold.Token(s)]; ok {
		return in
	}
	return IntentChat
}

// scalar renders a decoded JSON value as trimmed text. Objects and arrays
// read as empty.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(x)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}
