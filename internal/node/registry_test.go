package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// fakeNode is a minimal node for registry tests.
type fakeNode struct {
	id string
}

func (f fakeNode) Schema() Schema {
	return Schema{
		ID: f.id,
		Inputs: []Port{
			{Name: "text", Type: PortString, Default: "dflt"},
			{Name: "count", Type: PortInt, Optional: true},
		},
		Outputs: []Port{{Name: "out", Type: PortString}},
	}
}

func (f fakeNode) Execute(ctx context.Context, in Inputs) (Outputs, error) {
	return Outputs{"out": in.String("text")}, nil
}

func TestRegister_Duplicate(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Register(fakeNode{id: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(fakeNode{id: "a"}); err == nil {
		t.Error("expected error registering duplicate ID")
	}
	if err := r.Register(fakeNode{id: ""}); err == nil {
		t.Error("expected error registering empty ID")
	}
}

func TestList_Sorted(t *testing.T) {
	r, _ := NewRegistry("")
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(fakeNode{id: id}); err != nil {
			t.Fatal(err)
		}
	}

	schemas := r.List()
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	if schemas[0].ID != "alpha" || schemas[2].ID != "zeta" {
		t.Errorf("schemas not sorted: %v", []string{schemas[0].ID, schemas[1].ID, schemas[2].ID})
	}
}

func TestStats_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")

	r, _ := NewRegistry(path)
	r.Register(fakeNode{id: "a"})
	r.RecordRun("a", 1500*time.Microsecond, false)
	r.RecordRun("a", 500*time.Microsecond, true)

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}

	r2, err := NewRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	s := r2.StatsFor("a")
	if s.Runs != 2 || s.Failures != 1 {
		t.Errorf("expected 2 runs / 1 failure, got %d/%d", s.Runs, s.Failures)
	}
	if s.TotalUs != 2000 {
		t.Errorf("expected 2000us total, got %d", s.TotalUs)
	}
}

func TestApplyDefaults(t *testing.T) {
	schema := fakeNode{id: "a"}.Schema()

	in := Inputs{"count": 3}
	out := schema.ApplyDefaults(in)

	if out.String("text") != "dflt" {
		t.Errorf("default not applied: %v", out["text"])
	}
	if out.Int("count") != 3 {
		t.Errorf("explicit input lost: %v", out["count"])
	}
	if _, present := in["text"]; present {
		t.Error("ApplyDefaults mutated its input")
	}
}

func TestInputs_Coercion(t *testing.T) {
	in := Inputs{
		"s_num":  1.5,
		"s_bool": true,
		"f_str":  "2.5",
		"i_f":    float64(7),
		"b_str":  "true",
	}

	if got := in.String("s_num"); got != "1.5" {
		t.Errorf("String(float): got %q", got)
	}
	if got := in.String("s_bool"); got != "true" {
		t.Errorf("String(bool): got %q", got)
	}
	if got := in.Float("f_str"); got != 2.5 {
		t.Errorf("Float(string): got %v", got)
	}
	if got := in.Int("i_f"); got != 7 {
		t.Errorf("Int(float): got %v", got)
	}
	if !in.Bool("b_str") {
		t.Error("Bool(string) should parse true")
	}
	if in.String("absent") != "" || in.Int("absent") != 0 || in.Bool("absent") {
		t.Error("absent inputs should be zero values")
	}
}

func TestValidateCombo(t *testing.T) {
	p := Port{Name: "role", Options: []string{"user", "tool"}}
	if err := ValidateCombo(p, "user"); err != nil {
		t.Errorf("valid option rejected: %v", err)
	}
	if err := ValidateCombo(p, "narrator"); err == nil {
		t.Error("invalid option accepted")
	}
	if err := ValidateCombo(Port{Name: "free"}, "anything"); err != nil {
		t.Errorf("option-less port rejected a value: %v", err)
	}
}
