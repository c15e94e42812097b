package dataset

import (
	"encoding/csv"
	"os"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

// Snapshot is the immutable raw dataset for a session: named columns
// over string-valued rows, exactly as read from the source file. It is
// the ownership root for all derived working copies and outlives them;
// nothing ever mutates it after load.
type Snapshot struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// LoadCSV reads the raw dataset from a CSV file and verifies that every
// column named by the semantic layer is present. Any failure is a fatal
// dataset_load error; no partial snapshot is returned.
func LoadCSV(path string, layer *semantic.Layer) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.NewDatasetLoadError("opening %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, api.NewDatasetLoadError("parsing %s: %v", path, err)
	}
	if len(records) == 0 {
		return nil, api.NewDatasetLoadError("%s has no header row", path)
	}

	snap := New(records[0], records[1:])

	if layer != nil {
		for _, c := range layer.Columns() {
			if _, ok := snap.index[c.Name]; !ok {
				return nil, api.NewDatasetLoadError(
					"semantic layer column %q is not present in %s", c.Name, path)
			}
		}
	}

	return snap, nil
}

// New builds a snapshot from an in-memory header and rows. The inputs
// are copied so later caller mutations cannot reach the snapshot.
func New(columns []string, rows [][]string) *Snapshot {
	s := &Snapshot{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]string, len(rows)),
	}
	for i, c := range s.columns {
		s.index[c] = i
	}
	for i, row := range rows {
		s.rows[i] = append([]string(nil), row...)
	}
	return s
}

// Columns returns the column names in file order.
func (s *Snapshot) Columns() []string {
	return append([]string(nil), s.columns...)
}

// NumRows returns the number of data rows.
func (s *Snapshot) NumRows() int {
	return len(s.rows)
}

// Column returns a copy of the raw values of the named column.
func (s *Snapshot) Column(name string) ([]string, bool) {
	idx, ok := s.index[name]
	if !ok {
		return nil, false
	}
	vals := make([]string, len(s.rows))
	for i, row := range s.rows {
		if idx < len(row) {
			vals[i] = row[idx]
		}
	}
	return vals, true
}
