package render

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

// rule rewrites one encoded column name to its readable form.
type rule struct {
	from string
	to   string
}

// Renderer rewrites captured blocks into human-readable terms for one
// request. Build it from the session's semantic layer and the working
// frame's audit trail; it holds no mutable state and is safe to reuse
// within the request.
type Renderer struct {
	names  []rule
	labels map[string]string
}

// New builds a renderer from the semantic layer's value mappings and
// the preprocessing audit trail. Either argument may be nil, in which
// case the corresponding rewrites are skipped.
func New(layer *semantic.Layer, audit *dataset.Audit) *Renderer {
	r := &Renderer{labels: make(map[string]string)}

	if audit != nil {
		for _, e := range audit.Entries() {
			// Ordinal encodings keep the column name and record one
			// entry per category code; those are not renames.
			if e.Encoded == e.Source {
				continue
			}
			to := readable(e)
			if to == "" || to == e.Encoded {
				continue
			}
			r.names = append(r.names, rule{from: e.Encoded, to: to})
		}
		// Longest encoded name first, so "col__<30" never matches inside
		// "col__<300". Ties keep audit order.
		sort.SliceStable(r.names, func(i, j int) bool {
			return len(r.names[i].from) > len(r.names[j].from)
		})
	}

	if layer != nil {
		for _, m := range layer.Mappings() {
			if _, ok := r.labels[m.Raw]; !ok {
				r.labels[m.Raw] = m.Label
			}
		}
	}

	return r
}

// readable picks the human form for one audit entry: the semantic-layer
// label when the category is mapped, otherwise "<source> = <category>".
func readable(e dataset.AuditEntry) string {
	if e.Label != "" {
		return e.Label
	}
	if e.Category != "" {
		return fmt.Sprintf("%s = %s", e.Source, e.Category)
	}
	return e.Source
}

// Render returns a new block list with text and table content rewritten
// into human terms. The input blocks and any figure artifacts are not
// mutated; figures are passed through as-is.
func (r *Renderer) Render(blocks []api.Block) []api.Block {
	out := make([]api.Block, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case api.BlockTypeText:
			b.Text = r.rewriteText(b.Text)
		case api.BlockTypeTable:
			if b.Table != nil {
				b.Table = r.rewriteTable(b.Table)
			}
		}
		out[i] = b
	}
	return out
}

func (r *Renderer) rewriteTable(t *api.Table) *api.Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = r.rewriteNames(c)
	}
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = r.rewriteCell(cell)
		}
		rows[i] = cells
	}
	return &api.Table{Columns: cols, Rows: rows}
}

// rewriteNames substitutes encoded column names wherever they appear.
func (r *Renderer) rewriteNames(s string) string {
	for _, rule := range r.names {
		s = strings.ReplaceAll(s, rule.from, rule.to)
	}
	return s
}

// rewriteText additionally maps whitespace-delimited tokens that are
// exactly a raw category value to their labels. Only whole tokens are
// rewritten: a raw value buried inside a longer word stays untouched.
func (r *Renderer) rewriteText(s string) string {
	s = r.rewriteNames(s)
	if len(r.labels) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := s[start:end]
		if label, ok := r.labels[tok]; ok {
			b.WriteString(label)
		} else {
			b.WriteString(tok)
		}
		start = -1
	}
	for i, c := range s {
		if unicode.IsSpace(c) {
			flush(i)
			b.WriteRune(c)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(s))
	return b.String()
}

// rewriteCell additionally maps a cell holding exactly one raw category
// value to its label. Partial matches are left alone: rewriting raw
// values inside free text would corrupt unrelated content.
func (r *Renderer) rewriteCell(s string) string {
	s = r.rewriteNames(s)
	if label, ok := r.labels[strings.TrimSpace(s)]; ok {
		return label
	}
	return s
}
