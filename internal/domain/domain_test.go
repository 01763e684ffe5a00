package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Field tests ---

func TestFieldOrder(t *testing.T) {
	assert.Equal(t, []Field{FieldClientName, FieldProject, FieldModality, FieldOccursAt}, RequiredFields)
	assert.Len(t, AllFields, 6)
	for _, f := range RequiredFields {
		assert.True(t, f.Required(), f)
		assert.True(t, f.Valid(), f)
	}
	assert.False(t, FieldNotes.Required())
	assert.False(t, FieldClientNumber.Required())
	assert.False(t, Field("color").Valid())
}

func TestFieldLabel(t *testing.T) {
	assert.Equal(t, "Cliente", FieldClientName.Label())
	assert.Equal(t, "Fecha y hora", FieldOccursAt.Label())
	assert.Equal(t, "unknown", Field("unknown").Label())
}

// --- Appointment tests ---

func TestAppointmentMissing(t *testing.T) {
	var a Appointment
	assert.Equal(t, RequiredFields, a.Missing())

	a.SetText(FieldClientName, "  Ana ")
	a.SetText(FieldModality, "presencial")
	assert.Equal(t, "Ana", a.ClientName)
	assert.Equal(t, []Field{FieldProject, FieldOccursAt}, a.Missing())

	a.SetText(FieldProject, "Norte")
	a.OccursAt = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	assert.Empty(t, a.Missing())
	assert.NoError(t, a.Validate())
}

func TestAppointmentValidate(t *testing.T) {
	a := Appointment{ClientName: "Ana", Project: "Norte"}
	err := a.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	assert.Contains(t, err.Error(), "modality")
	assert.Contains(t, err.Error(), "occurs_at")
}

func TestAppointmentClear(t *testing.T) {
	a := Appointment{ClientName: "Ana", OccursAt: time.Now()}
	a.Clear(FieldOccursAt)
	a.Clear(FieldClientName)
	assert.False(t, a.Has(FieldOccursAt))
	assert.False(t, a.Has(FieldClientName))
}

func TestAppointmentSetTextIgnoresOccursAt(t *testing.T) {
	var a Appointment
	a.SetText(FieldOccursAt, "mañana")
	assert.True(t, a.OccursAt.IsZero())
	assert.Empty(t, a.Text(FieldOccursAt))
}

func TestAppointmentHasNotified(t *testing.T) {
	a := Appointment{NotifiedOffsets: []string{"advance"}}
	assert.True(t, a.HasNotified("advance"))
	assert.False(t, a.HasNotified("due"))
}

func TestChangeApply(t *testing.T) {
	a := Appointment{Project: "Norte"}
	Change{Field: FieldProject, Text: "Sur"}.Apply(&a)
	assert.Equal(t, "Sur", a.Project)

	when := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	Change{Field: FieldOccursAt, Time: when}.Apply(&a)
	assert.Equal(t, when, a.OccursAt)
}

func TestFilterMatch(t *testing.T) {
	at := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	a := Appointment{ClientName: "José Pérez", Project: "Norte", OccursAt: at}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"accent-insensitive name", Filter{Field: FieldClientName, Value: "jose"}, true},
		{"substring", Filter{Field: FieldClientName, Value: "PÉREZ"}, true},
		{"wrong field", Filter{Field: FieldProject, Value: "jose"}, false},
		{"in range", Filter{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, true},
		{"range end exclusive", Filter{From: at.Add(-time.Hour), To: at}, false},
		{"range start inclusive", Filter{From: at}, true},
		{"before range", Filter{From: at.Add(time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(&a))
		})
	}
}

// --- JSON serialization tests ---

func TestAppointmentJSON_OmitsEmpty(t *testing.T) {
	a := Appointment{ID: "a1", OwnerID: "irc:ana", ClientName: "Ana"}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"ownerId":"irc:ana"`)
	assert.NotContains(t, raw, "clientNumber")
	assert.NotContains(t, raw, "notifiedOffsets")
	assert.NotContains(t, raw, "reported")
}

func TestOutboundMessageJSON_OmitsEmpty(t *testing.T) {
	msg := OutboundMessage{ChannelID: "irc", To: "ana", Body: "hola"}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "notification")
}

func TestChatTypeConstants(t *testing.T) {
	assert.Equal(t, ChatType("dm"), ChatTypeDM)
	assert.Equal(t, ChatType("group"), ChatTypeGroup)
}

// --- AliasTable tests ---

func TestAliasTableResolve(t *testing.T) {
	table := NewAliasTable(nil)

	tests := []struct {
		in   string
		want Field
	}{
		{"cliente", FieldClientName},
		{"Client_Name", FieldClientName},
		{"el nombre", FieldClientName},
		{"Teléfono", FieldClientNumber},
		{"el número de teléfono", FieldClientNumber},
		{"proyecto", FieldProject},
		{"la modalidad", FieldModality},
		{"FECHA", FieldOccursAt},
		{"fecha y hora", FieldOccursAt},
		{"cambiar la hora", FieldOccursAt},
		{"observaciones", FieldNotes},
		{"observ", FieldNotes},
		{"obs.", FieldNotes},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := table.Resolve(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAliasTableRejects(t *testing.T) {
	table := NewAliasTable(nil)
	for _, in := range []string{"blah", "", "   ", "no", "color favorito"} {
		_, ok := table.Resolve(in)
		assert.False(t, ok, in)
	}
}

func TestAliasTableExtra(t *testing.T) {
	table := NewAliasTable(map[Field][]string{
		FieldProject: {"obra"},
		Field("bogus"): {"zzz"},
	})
	got, ok := table.Resolve("la obra")
	require.True(t, ok)
	assert.Equal(t, FieldProject, got)

	_, ok = table.Resolve("zzz")
	assert.False(t, ok)
}

func TestAliasTableNames(t *testing.T) {
	names := NewAliasTable(nil).Names()
	assert.Equal(t, []string{"Cliente", "Número", "Proyecto", "Modalidad", "Fecha y hora", "Observaciones"}, names)
}

func TestAliasTableListField(t *testing.T) {
	table := NewAliasTable(nil)

	tests := []struct {
		in   string
		want Field
		ok   bool
	}{
		{"clientes", FieldClientName, true},
		{"Clientes?", FieldClientName, true},
		{"ver proyectos", FieldProject, true},
		{"lista de los números", FieldClientNumber, true},
		{"todas las observaciones", FieldNotes, true},
		{"fechas", FieldOccursAt, true},
		{"cliente", "", false},
		{"clientes de Ana", "", false},
		{"de", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := table.ListField(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAliasTableResolvesPlurals(t *testing.T) {
	got, ok := NewAliasTable(nil).Resolve("proyectos")
	require.True(t, ok)
	assert.Equal(t, FieldProject, got)
}
