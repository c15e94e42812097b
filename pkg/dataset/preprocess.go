package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

// Options configures the preprocessing pipeline.
type Options struct {
	ImputeMissing          bool
	Encode                 api.Encoding
	NumericOnlyForModeling bool
}

// DefaultOptions returns the default preprocessing policy: impute
// missing values, no categorical encoding, full column view.
func DefaultOptions() Options {
	return Options{
		ImputeMissing: true,
		Encode:        api.EncodingNone,
	}
}

// WithOverrides applies caller-supplied overrides on top of the options.
func (o Options) WithOverrides(ov *api.PreprocessOverrides) Options {
	if ov == nil {
		return o
	}
	if ov.ImputeMissing != nil {
		o.ImputeMissing = *ov.ImputeMissing
	}
	if ov.EncodeCategoricals != nil {
		o.Encode = *ov.EncodeCategoricals
	}
	if ov.NumericOnlyForModeling != nil {
		o.NumericOnlyForModeling = *ov.NumericOnlyForModeling
	}
	return o
}

// unknownCategory is the literal category used for missing categorical
// values. Rows are never dropped, to preserve alignment with any
// user-specified grouping.
const unknownCategory = "unknown"

// AuditEntry records one encoding or rename performed by the pipeline,
// so result labels can be mapped back to human-readable terms.
type AuditEntry struct {
	Encoded  string // column name in the working frame, e.g. "race__Caucasian"
	Source   string // original column name
	Category string // raw category value, empty for plain renames
	Label    string // semantic-layer label for the category, if mapped
}

// Audit is the pipeline's column-name audit trail.
type Audit struct {
	entries []AuditEntry
	byName  map[string]int
}

func newAudit() *Audit {
	return &Audit{byName: make(map[string]int)}
}

func (a *Audit) add(e AuditEntry) {
	a.byName[e.Encoded] = len(a.entries)
	a.entries = append(a.entries, e)
}

// Entries returns all recorded entries in creation order.
func (a *Audit) Entries() []AuditEntry {
	return a.entries
}

// Lookup finds the audit entry for an encoded column name.
func (a *Audit) Lookup(encoded string) (AuditEntry, bool) {
	idx, ok := a.byName[encoded]
	if !ok {
		return AuditEntry{}, false
	}
	return a.entries[idx], true
}

// Column is one column of a working frame: either numeric (Nums) or
// string-valued (Strs).
type Column struct {
	Name    string
	Numeric bool
	Nums    []float64
	Strs    []string
}

// Working is the request-local, preprocessing-derived dataset copy used
// for a single execution. Created fresh per request, discarded after,
// never shared across concurrent requests.
type Working struct {
	columns     []Column
	index       map[string]int
	modeling    []string
	numericOnly bool
	audit       *Audit
	rows        int
}

// Preprocess derives a Working frame from the raw snapshot according to
// the semantic layer's type tags and the given options. The snapshot is
// only read, never written.
func Preprocess(snap *Snapshot, layer *semantic.Layer, opts Options) (*Working, error) {
	w := &Working{
		index: make(map[string]int),
		audit: newAudit(),
		rows:  snap.NumRows(),
	}

	for _, name := range snap.Columns() {
		raw, _ := snap.Column(name)
		tag := semantic.ColumnText
		if layer != nil {
			if c, ok := layer.Column(name); ok {
				tag = c.Type
			}
		}

		switch tag {
		case semantic.ColumnNumeric:
			w.addColumn(numericColumn(name, raw, opts.ImputeMissing))
		default:
			w.addColumn(stringColumn(name, raw, opts.ImputeMissing))
		}
	}

	if opts.Encode != api.EncodingNone && layer != nil {
		if err := w.encodeCategoricals(layer, opts.Encode); err != nil {
			return nil, err
		}
	}

	for _, c := range w.columns {
		if c.Numeric {
			w.modeling = append(w.modeling, c.Name)
		}
	}
	w.numericOnly = opts.NumericOnlyForModeling

	return w, nil
}

// numericColumn parses raw strings into floats. Missing or unparseable
// values become NaN and, when imputing, are replaced by the column
// median so downstream code never sees a hole.
func numericColumn(name string, raw []string, impute bool) Column {
	nums := make([]float64, len(raw))
	var present []float64
	for i, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if isMissing(v) || err != nil {
			nums[i] = math.NaN()
			continue
		}
		nums[i] = f
		present = append(present, f)
	}
	if impute {
		med := Median(present)
		for i := range nums {
			if math.IsNaN(nums[i]) {
				nums[i] = med
			}
		}
	}
	return Column{Name: name, Numeric: true, Nums: nums}
}

func stringColumn(name string, raw []string, impute bool) Column {
	strs := make([]string, len(raw))
	for i, v := range raw {
		if impute && isMissing(v) {
			strs[i] = unknownCategory
			continue
		}
		strs[i] = v
	}
	return Column{Name: name, Strs: strs}
}

// isMissing reports whether a raw cell counts as a missing value.
// The literal "None" is a valid category in several datasets and is
// deliberately not treated as missing.
func isMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "n/a", "null", "nan", "?":
		return true
	}
	return false
}

// encodeCategoricals expands categorical columns per the requested
// encoding. One-hot adds indicator columns named <column>__<category>;
// ordinal converts the column itself to category indices. Both record
// audit entries carrying the semantic-layer label for each category.
func (w *Working) encodeCategoricals(layer *semantic.Layer, enc api.Encoding) error {
	for _, lc := range layer.Columns() {
		if lc.Type != semantic.ColumnCategorical {
			continue
		}
		idx, ok := w.index[lc.Name]
		if !ok || w.columns[idx].Numeric {
			continue
		}
		col := w.columns[idx]
		cats := distinctSorted(col.Strs)

		switch enc {
		case api.EncodingOneHot:
			for _, cat := range cats {
				encoded := fmt.Sprintf("%s__%s", lc.Name, cat)
				nums := make([]float64, len(col.Strs))
				for i, v := range col.Strs {
					if v == cat {
						nums[i] = 1
					}
				}
				w.addColumn(Column{Name: encoded, Numeric: true, Nums: nums})
				label, _ := layer.Label(lc.Name, cat)
				w.audit.add(AuditEntry{
					Encoded:  encoded,
					Source:   lc.Name,
					Category: cat,
					Label:    label,
				})
			}
		case api.EncodingOrdinal:
			codes := make(map[string]float64, len(cats))
			for i, cat := range cats {
				codes[cat] = float64(i)
				label, _ := layer.Label(lc.Name, cat)
				w.audit.add(AuditEntry{
					Encoded:  lc.Name,
					Source:   lc.Name,
					Category: cat,
					Label:    label,
				})
			}
			nums := make([]float64, len(col.Strs))
			for i, v := range col.Strs {
				nums[i] = codes[v]
			}
			w.columns[idx] = Column{Name: lc.Name, Numeric: true, Nums: nums}
		default:
			return api.NewInvalidRequestError(fmt.Sprintf("unknown encoding %q", enc))
		}
	}
	return nil
}

func (w *Working) addColumn(c Column) {
	w.index[c.Name] = len(w.columns)
	w.columns = append(w.columns, c)
}

func distinctSorted(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// NumRows returns the number of rows in the working frame.
func (w *Working) NumRows() int {
	return w.rows
}

// Audit returns the pipeline's audit trail.
func (w *Working) Audit() *Audit {
	return w.audit
}

// View returns the column names visible to executed code. With
// numeric-only modeling enabled this is the modeling view: only numeric
// and freshly encoded columns, so no object-typed column can reach a
// regression routine.
func (w *Working) View() []string {
	if w.numericOnly {
		return append([]string(nil), w.modeling...)
	}
	names := make([]string, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.Name
	}
	return names
}

// ModelingView returns the names of the fully numeric modeling columns.
func (w *Working) ModelingView() []string {
	return append([]string(nil), w.modeling...)
}

// visible reports whether the named column is inside the current view.
func (w *Working) visible(name string) (int, bool) {
	idx, ok := w.index[name]
	if !ok {
		return 0, false
	}
	if w.numericOnly && !w.columns[idx].Numeric {
		return 0, false
	}
	return idx, true
}

// Column returns the named column from the current view. A miss is a
// recoverable name_mismatch: generated code referenced a column that is
// not in the working frame.
func (w *Working) Column(name string) (Column, error) {
	idx, ok := w.visible(name)
	if !ok {
		return Column{}, api.NewNameMismatchError(
			fmt.Sprintf("column %q is not in the working dataset", name), "")
	}
	return w.columns[idx], nil
}

// Numeric returns the values of a column that must be numeric. A
// non-numeric column is a recoverable type_mismatch.
func (w *Working) Numeric(name string) ([]float64, error) {
	c, err := w.Column(name)
	if err != nil {
		return nil, err
	}
	if !c.Numeric {
		return nil, api.NewTypeMismatchError(
			fmt.Sprintf("column %q is not numeric", name), "")
	}
	return c.Nums, nil
}

// Group is one row of a grouped aggregation.
type Group struct {
	Key   string
	Value float64
	Count int
}

// GroupBy aggregates valueCol per distinct value of byCol. Groups are
// ordered by first appearance in the data. agg is one of mean, median,
// sum, min, max, count.
func (w *Working) GroupBy(byCol, valueCol, agg string) ([]Group, error) {
	by, err := w.Column(byCol)
	if err != nil {
		return nil, err
	}

	var vals []float64
	if agg != "count" {
		vals, err = w.Numeric(valueCol)
		if err != nil {
			return nil, err
		}
	}

	keyAt := func(i int) string {
		if by.Numeric {
			return strconv.FormatFloat(by.Nums[i], 'g', -1, 64)
		}
		return by.Strs[i]
	}

	grouped := make(map[string][]float64)
	var order []string
	for i := 0; i < w.rows; i++ {
		k := keyAt(i)
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		if agg == "count" {
			grouped[k] = append(grouped[k], 1)
		} else {
			grouped[k] = append(grouped[k], vals[i])
		}
	}

	out := make([]Group, 0, len(order))
	for _, k := range order {
		g := Group{Key: k, Count: len(grouped[k])}
		switch agg {
		case "mean":
			g.Value = Mean(grouped[k])
		case "median":
			g.Value = Median(grouped[k])
		case "sum":
			g.Value = Sum(grouped[k])
		case "min":
			g.Value = Min(grouped[k])
		case "max":
			g.Value = Max(grouped[k])
		case "count":
			g.Value = float64(g.Count)
		default:
			return nil, api.NewInvalidRequestError(fmt.Sprintf("unknown aggregation %q", agg))
		}
		out = append(out, g)
	}
	return out, nil
}
