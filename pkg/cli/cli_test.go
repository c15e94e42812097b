package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testLayer = `
columns:
  time_in_hospital:
    description: Number of days between admission and discharge
    type: numeric
    synonyms: [length of stay]
    missing: 0
  readmitted:
    description: Readmission status
    type: categorical
    synonyms: [readmission status]
    missing: 0
value_mappings:
  readmitted:
    "NO": not readmitted
    "<30": readmitted within 30 days
`

func writeLayer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layer.yaml")
	if err := os.WriteFile(path, []byte(testLayer), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	want := map[string]bool{"serve": false, "ask": false, "resolve": false}
	for _, sub := range root.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestResolveCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resolve", "--layer", writeLayer(t), "length of stay for not readmitted patients"})

	if err := root.Execute(); err != nil {
		t.Fatalf("resolve failed: %v\n%s", err, out.String())
	}

	got := out.String()
	if !strings.Contains(got, "time_in_hospital") {
		t.Errorf("output missing column resolution:\n%s", got)
	}
	if !strings.Contains(got, "readmitted") || !strings.Contains(got, "NO") {
		t.Errorf("output missing value resolution:\n%s", got)
	}
}

func TestResolveCommand_NoMatches(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resolve", "--layer", writeLayer(t), "completely unrelated words"})

	if err := root.Execute(); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.Contains(out.String(), "no terms resolved") {
		t.Errorf("output = %q", out.String())
	}
}

func TestResolveCommand_MissingLayer(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resolve", "--layer", "/nonexistent/layer.yaml", "anything"})

	if err := root.Execute(); err == nil {
		t.Error("expected error for missing layer file")
	}
}
