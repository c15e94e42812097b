package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

const testLayerYAML = `
columns:
  time_in_hospital:
    type: numeric
    synonyms: [length of stay]
  num_medications:
    type: numeric
  readmitted:
    type: categorical
  A1Cresult:
    type: categorical
value_mappings:
  readmitted:
    "NO": not readmitted
    "<30": readmitted within 30 days
  A1Cresult:
    ">7": greater than 7 percent
    ">8": greater than 8 percent
    "Norm": normal
    "None": not measured
`

func testLayer(t *testing.T) *semantic.Layer {
	t.Helper()
	l, err := semantic.Parse([]byte(testLayerYAML))
	if err != nil {
		t.Fatalf("parsing test layer: %v", err)
	}
	return l
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testCSV = `time_in_hospital,num_medications,readmitted,A1Cresult
3,12,NO,>7
5,8,<30,None
1,,NO,Norm
7,15,<30,>8
4,10,NO,
`

func TestLoadCSV(t *testing.T) {
	layer := testLayer(t)
	snap, err := LoadCSV(writeCSV(t, testCSV), layer)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	if snap.NumRows() != 5 {
		t.Errorf("NumRows() = %d, want 5", snap.NumRows())
	}
	want := []string{"time_in_hospital", "num_medications", "readmitted", "A1Cresult"}
	if !reflect.DeepEqual(snap.Columns(), want) {
		t.Errorf("Columns() = %v, want %v", snap.Columns(), want)
	}

	vals, ok := snap.Column("readmitted")
	if !ok {
		t.Fatal("readmitted column missing")
	}
	if !reflect.DeepEqual(vals, []string{"NO", "<30", "NO", "<30", "NO"}) {
		t.Errorf("readmitted = %v", vals)
	}
}

func TestLoadCSVMissingLayerColumn(t *testing.T) {
	layer := testLayer(t)
	csv := "time_in_hospital,readmitted\n3,NO\n"

	_, err := LoadCSV(writeCSV(t, csv), layer)
	if err == nil {
		t.Fatal("expected error for missing semantic layer column")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindDatasetLoad {
		t.Errorf("expected dataset_load error, got %v", err)
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/data.csv", nil)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindDatasetLoad {
		t.Errorf("expected dataset_load error, got %v", err)
	}
}

func TestSnapshotCopiesInput(t *testing.T) {
	cols := []string{"a", "b"}
	rows := [][]string{{"1", "x"}, {"2", "y"}}
	snap := New(cols, rows)

	// Mutating the caller's slices must not reach the snapshot.
	cols[0] = "mutated"
	rows[0][0] = "mutated"

	if snap.Columns()[0] != "a" {
		t.Error("snapshot shares column header storage with caller")
	}
	a, _ := snap.Column("a")
	if a[0] != "1" {
		t.Error("snapshot shares row storage with caller")
	}
}

func TestSnapshotUnchangedByPreprocessing(t *testing.T) {
	layer := testLayer(t)
	snap, err := LoadCSV(writeCSV(t, testCSV), layer)
	if err != nil {
		t.Fatal(err)
	}

	before := snapshotContents(snap)

	for i := 0; i < 3; i++ {
		opts := DefaultOptions()
		opts.Encode = api.EncodingOneHot
		opts.NumericOnlyForModeling = true
		w, err := Preprocess(snap, layer, opts)
		if err != nil {
			t.Fatal(err)
		}
		// The working frame is always a distinct object.
		if reflect.ValueOf(w).Pointer() == reflect.ValueOf(snap).Pointer() {
			t.Fatal("working dataset must never be the raw snapshot")
		}
	}

	if !reflect.DeepEqual(before, snapshotContents(snap)) {
		t.Error("raw snapshot changed after preprocessing runs")
	}
}

func snapshotContents(s *Snapshot) map[string][]string {
	out := make(map[string][]string)
	for _, c := range s.Columns() {
		vals, _ := s.Column(c)
		out[c] = vals
	}
	return out
}
