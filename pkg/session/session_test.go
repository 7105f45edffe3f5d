package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/value"
)

func sumFields() schema.FieldSet {
	return schema.FieldSet{
		{ID: "A", Label: "A", Kind: schema.KindText, DefaultValue: "2"},
		{ID: "B", Label: "B", Kind: schema.KindText, DefaultValue: "3"},
		{ID: "C", Label: "Sum", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"A", "B"},
			Formula:   "number(A) + number(B)",
		}},
	}
}

func TestSessionDerivesSum(t *testing.T) {
	t.Parallel()

	s, err := New(sumFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := s.Snapshot().Value("C").String(); got != "5" {
		t.Fatalf("expected C=5, got %q", got)
	}

	snap, err := s.SetValue("A", value.Text("10"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if got := snap.Value("C").String(); got != "13" {
		t.Fatalf("expected C=13, got %q", got)
	}
	if snap.Fields["C"].Failed {
		t.Fatalf("did not expect C to be marked failed")
	}
}

func TestSessionMinLengthViolations(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "X", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.MinLength(5)}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	snap, err := s.SetValue("X", value.Text("ab"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"Min length 5"}, snap.Violations("X")); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}

	snap, err = s.SetValue("X", value.Text("abcdef"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if len(snap.Violations("X")) != 0 {
		t.Fatalf("expected no violations, got %v", snap.Violations("X"))
	}
	if !snap.Valid() {
		t.Fatalf("expected snapshot to be valid")
	}
}

func TestSessionSelfCycleKeepsDefault(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "Y", Kind: schema.KindText, DefaultValue: "seed", Derived: &schema.Derivation{
			ParentIDs: []string{"Y"},
			Formula:   "1 / 0",
		}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	state := s.Snapshot().Fields["Y"]
	if !state.Cyclic || !state.Failed {
		t.Fatalf("expected Y to be cyclic and failed, got %#v", state)
	}
	if !state.Value.Equal(value.Text("seed")) {
		t.Fatalf("expected Y to keep its default, got %#v", state.Value)
	}
	if !strings.HasPrefix(state.Diagnostic, "cyclic derivation") {
		t.Fatalf("expected cycle diagnostic, got %q", state.Diagnostic)
	}
}

func TestSessionUnknownParentIsAbsent(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "in", Kind: schema.KindText, DefaultValue: "x"},
		{ID: "Z", Kind: schema.KindText, DefaultValue: "seed", Derived: &schema.Derivation{
			ParentIDs: []string{"missing_id"},
			Formula:   "fields['missing_id']",
		}},
		{ID: "W", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"Z"},
			Formula:   "empty(Z) ? 'none' : Z",
		}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	snap := s.Snapshot()
	state := snap.Fields["Z"]
	if !state.Failed || state.Cyclic || !state.Value.IsAbsent() {
		t.Fatalf("expected Z to be failed and absent, got %#v", state)
	}
	if !strings.Contains(state.Diagnostic, "missing_id") {
		t.Fatalf("expected diagnostic to name the unknown parent, got %q", state.Diagnostic)
	}
	if got := snap.Value("W"); !got.Equal(value.Text("none")) {
		t.Fatalf("expected W to see an absent Z, got %#v", got)
	}
}

func TestSessionMissingFieldIsEvaluationFailure(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := New(schema.FieldSet{
		{ID: "in", Kind: schema.KindText},
		{ID: "Z", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"in"},
			Formula:   "fields['missing_id']",
		}},
	}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	snap, err := s.SetValue("in", value.Text("anything"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	state := snap.Fields["Z"]
	if !state.Failed || !state.Value.IsAbsent() {
		t.Fatalf("expected Z to be failed and absent, got %#v", state)
	}
	if !strings.Contains(state.Diagnostic, "missing_id") {
		t.Fatalf("expected diagnostic to name the field, got %q", state.Diagnostic)
	}
	if !strings.Contains(logs.String(), "formula evaluation failed") {
		t.Fatalf("expected debug log entry, got %q", logs.String())
	}
}

func TestSessionRejectsInvalidCommands(t *testing.T) {
	t.Parallel()

	s, err := New(sumFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	before := s.Snapshot()

	if _, err := s.SetValue("nope", value.Text("1")); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := s.SetValue("C", value.Text("99")); !errors.Is(err, ErrDerivedField) {
		t.Fatalf("expected ErrDerivedField, got %v", err)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("rejected commands changed the session (-before +after):\n%s", diff)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	_, err := New(schema.FieldSet{{ID: "a", Kind: schema.KindText}, {ID: "a", Kind: schema.KindText}})
	if !errors.Is(err, ErrInvalidFieldSet) {
		t.Fatalf("expected ErrInvalidFieldSet, got %v", err)
	}
}

func TestSessionSetValueIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := New(sumFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	first, err := s.SetValue("B", value.Text("7"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	second, err := s.SetValue("B", value.Text("7"))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeating an edit changed the snapshot (-first +second):\n%s", diff)
	}
}

func TestSessionChainAndDownstreamOfCycle(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "price", Kind: schema.KindNumber, DefaultValue: 4},
		{ID: "total", Kind: schema.KindNumber, Derived: &schema.Derivation{ParentIDs: []string{"subtotal"}, Formula: "subtotal * 2"}},
		{ID: "subtotal", Kind: schema.KindNumber, Derived: &schema.Derivation{ParentIDs: []string{"price"}, Formula: "price + 1"}},
		{ID: "p", Kind: schema.KindText, DefaultValue: "p0", Derived: &schema.Derivation{ParentIDs: []string{"q"}, Formula: "q"}},
		{ID: "q", Kind: schema.KindText, DefaultValue: "q0", Derived: &schema.Derivation{ParentIDs: []string{"p"}, Formula: "p"}},
		{ID: "tail", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"p"}, Formula: "upper(p)"}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	snap, err := s.SetValue("price", value.Number(10))
	if err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if !snap.Value("total").Equal(value.Number(22)) {
		t.Fatalf("expected total=22, got %v", snap.Value("total"))
	}
	for _, id := range []string{"p", "q"} {
		if !snap.Fields[id].Cyclic {
			t.Fatalf("expected %s to be cyclic", id)
		}
	}
	if !snap.Value("tail").Equal(value.Text("P0")) {
		t.Fatalf("expected tail to use the cyclic field's default, got %v", snap.Value("tail"))
	}
	if snap.Valid() {
		t.Fatalf("cyclic fields must make the snapshot invalid")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "name", Kind: schema.KindText, Required: true},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	snap := s.Snapshot()
	snap.Fields["name"].Violations[0] = "tampered"
	snap.Order[0] = "tampered"
	delete(snap.Fields, "name")

	fresh := s.Snapshot()
	if diff := cmp.Diff([]string{"Required"}, fresh.Violations("name")); diff != "" {
		t.Fatalf("session state leaked (-want +got):\n%s", diff)
	}
	if fresh.Order[0] != "name" {
		t.Fatalf("order leaked: %v", fresh.Order)
	}
}

func TestSessionRoundTripThroughJSONAndYAML(t *testing.T) {
	t.Parallel()

	fields := sumFields()
	fields = append(fields, schema.Field{
		ID:           "email",
		Kind:         schema.KindText,
		DefaultValue: "bad",
		Validations:  []schema.ValidationRule{schema.Email(), {Type: "future", Rule: "x"}},
	})
	due, err := value.ParseDate("2024-01-02")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	fields = append(fields,
		schema.Field{ID: "due", Kind: schema.KindDate, DefaultValue: due},
		schema.Field{ID: "start", Kind: schema.KindDate, DefaultValue: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		schema.Field{ID: "qty", Kind: schema.KindNumber, DefaultValue: value.Number(5)},
		schema.Field{ID: "later", Kind: schema.KindDate, Derived: &schema.Derivation{
			ParentIDs: []string{"due", "qty"},
			Formula:   "due + qty",
		}},
	)

	original, err := New(fields)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if got := original.Snapshot().Value("later").String(); got != "2024-01-07" {
		t.Fatalf("expected later=2024-01-07, got %q", got)
	}

	for _, format := range []schema.Format{schema.FormatJSON, schema.FormatYAML} {
		raw, err := schema.Encode(schema.Form{Fields: fields}, format)
		if err != nil {
			t.Fatalf("Encode(%s) returned error: %v", format, err)
		}
		decoded, err := schema.Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", format, err)
		}
		reloaded, err := New(decoded.Fields)
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", format, err)
		}
		if diff := cmp.Diff(original.Snapshot(), reloaded.Snapshot(), cmpopts.IgnoreFields(Snapshot{}, "Session")); diff != "" {
			t.Fatalf("%s round trip changed the snapshot (-want +got):\n%s", format, diff)
		}
	}
}

func TestSessionRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := New(sumFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	before := s.Snapshot()

	var notified []uint64
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		notified = append(notified, snap.Revision)
	})
	defer unsubscribe()

	after := s.Recompute()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("Recompute changed the snapshot (-before +after):\n%s", diff)
	}
	if after.Revision != 1 {
		t.Fatalf("expected revision to stay at 1, got %d", after.Revision)
	}
	if diff := cmp.Diff([]uint64{1}, notified); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}

	if _, err := s.SetValue("A", value.Text("5")); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if got := s.Recompute(); got.Revision != 2 || !got.Value("C").Equal(value.Number(8)) {
		t.Fatalf("expected revision 2 with C=8, got %d and %#v", got.Revision, got.Value("C"))
	}
}

func TestSessionSubscribe(t *testing.T) {
	t.Parallel()

	var initial []uint64
	s, err := New(sumFields(), WithObserver(func(snap Snapshot) {
		initial = append(initial, snap.Revision)
	}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if diff := cmp.Diff([]uint64{1}, initial); diff != "" {
		t.Fatalf("initial observer mismatch (-want +got):\n%s", diff)
	}

	var seen []string
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		seen = append(seen, snap.Value("C").String())
	})
	if _, err := s.SetValue("A", value.Text("1")); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	unsubscribe()
	if _, err := s.SetValue("A", value.Text("2")); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"4"}, seen); diff != "" {
		t.Fatalf("subscriber mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionValuesAndSetInput(t *testing.T) {
	t.Parallel()

	s, err := New(schema.FieldSet{
		{ID: "qty", Kind: schema.KindNumber},
		{ID: "agree", Kind: schema.KindCheckbox},
		{ID: "double", Kind: schema.KindNumber, Derived: &schema.Derivation{ParentIDs: []string{"qty"}, Formula: "qty * 2"}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := s.SetInput("qty", " 21 "); err != nil {
		t.Fatalf("SetInput returned error: %v", err)
	}
	if _, err := s.SetInput("agree", "true"); err != nil {
		t.Fatalf("SetInput returned error: %v", err)
	}

	want := map[string]any{"qty": 21.0, "agree": true, "double": 42.0}
	if diff := cmp.Diff(want, s.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if !strings.Contains(string(payload), `"double":{"value":42,"violations":[],"derived":true}`) {
		t.Fatalf("unexpected snapshot JSON: %s", payload)
	}
}
