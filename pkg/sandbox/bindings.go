package sandbox

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
)

// run is the per-execution state: the VM, the working frame, and the
// output blocks captured so far.
type run struct {
	vm     *goja.Runtime
	frame  *dataset.Working
	blocks []api.Block
}

// bind installs the allow-listed namespace: df, stats, print/console.log,
// table, and plot. Nothing else is reachable from executed code.
func (r *run) bind() {
	df := r.vm.NewObject()
	df.Set("columns", r.dfColumns)
	df.Set("rowCount", r.dfRowCount)
	df.Set("col", r.dfCol)
	df.Set("numeric", r.dfNumeric)
	df.Set("groupBy", r.dfGroupBy)
	r.vm.Set("df", df)

	stats := r.vm.NewObject()
	stats.Set("mean", r.statFn(dataset.Mean))
	stats.Set("median", r.statFn(dataset.Median))
	stats.Set("sum", r.statFn(dataset.Sum))
	stats.Set("min", r.statFn(dataset.Min))
	stats.Set("max", r.statFn(dataset.Max))
	stats.Set("count", r.statCount)
	stats.Set("corr", r.statCorr)
	stats.Set("linreg", r.statLinReg)
	r.vm.Set("stats", stats)

	r.vm.Set("print", r.print)
	console := r.vm.NewObject()
	console.Set("log", r.print)
	r.vm.Set("console", console)

	r.vm.Set("table", r.table)
	r.vm.Set("plot", r.plot)
}

// throw raises err as a JS exception carrying its classification.
func (r *run) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *run) dfColumns(_ goja.FunctionCall) goja.Value {
	return r.vm.ToValue(r.frame.View())
}

func (r *run) dfRowCount(_ goja.FunctionCall) goja.Value {
	return r.vm.ToValue(r.frame.NumRows())
}

func (r *run) dfCol(call goja.FunctionCall) goja.Value {
	name := r.argString(call, 0, "df.col")
	c, err := r.frame.Column(name)
	if err != nil {
		r.throw(err)
	}
	if c.Numeric {
		return r.vm.ToValue(c.Nums)
	}
	return r.vm.ToValue(c.Strs)
}

func (r *run) dfNumeric(call goja.FunctionCall) goja.Value {
	name := r.argString(call, 0, "df.numeric")
	nums, err := r.frame.Numeric(name)
	if err != nil {
		r.throw(err)
	}
	return r.vm.ToValue(nums)
}

func (r *run) dfGroupBy(call goja.FunctionCall) goja.Value {
	by := r.argString(call, 0, "df.groupBy")
	value := r.optString(call, 1)
	agg := r.argString(call, 2, "df.groupBy")

	groups, err := r.frame.GroupBy(by, value, agg)
	if err != nil {
		r.throw(err)
	}

	out := make([]map[string]any, len(groups))
	for i, g := range groups {
		out[i] = map[string]any{
			"key":   g.Key,
			"value": g.Value,
			"count": g.Count,
		}
	}
	return r.vm.ToValue(out)
}

// statFn adapts a series statistic to a JS function.
func (r *run) statFn(fn func([]float64) float64) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(fn(r.argFloats(call, 0)))
	}
}

func (r *run) statCount(call goja.FunctionCall) goja.Value {
	return r.vm.ToValue(len(r.argFloats(call, 0)))
}

func (r *run) statCorr(call goja.FunctionCall) goja.Value {
	return r.vm.ToValue(dataset.Corr(r.argFloats(call, 0), r.argFloats(call, 1)))
}

func (r *run) statLinReg(call goja.FunctionCall) goja.Value {
	slope, intercept, r2 := dataset.LinReg(r.argFloats(call, 0), r.argFloats(call, 1))
	return r.vm.ToValue(map[string]any{
		"slope":     slope,
		"intercept": intercept,
		"r2":        r2,
	})
}

// print captures a text block. Arguments are formatted and joined with
// a single space, matching console.log behavior.
func (r *run) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = formatCell(arg.Export())
	}
	r.blocks = append(r.blocks, api.Block{
		Type: api.BlockTypeText,
		Text: strings.Join(parts, " "),
	})
	return goja.Undefined()
}

// table captures a table block: table(columns, rows) with columns an
// array of names and rows an array of cell arrays.
func (r *run) table(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 {
		panic(r.vm.NewTypeError("table(columns, rows) requires two arguments"))
	}

	cols := r.exportStrings(call.Arguments[0], "table columns")

	rawRows, ok := call.Arguments[1].Export().([]any)
	if !ok {
		panic(r.vm.NewTypeError("table rows must be an array of arrays"))
	}
	rows := make([][]string, len(rawRows))
	for i, rr := range rawRows {
		cells, ok := rr.([]any)
		if !ok {
			panic(r.vm.NewTypeError("table row %d is not an array", i))
		}
		row := make([]string, len(cells))
		for j, cell := range cells {
			row[j] = formatCell(cell)
		}
		rows[i] = row
	}

	r.blocks = append(r.blocks, api.Block{
		Type:  api.BlockTypeTable,
		Table: &api.Table{Columns: cols, Rows: rows},
	})
	return goja.Undefined()
}

// plot captures a figure artifact. The spec object is stored opaquely;
// it is never mutated after capture.
func (r *run) plot(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(r.vm.NewTypeError("plot(spec) requires a spec object"))
	}

	exported := call.Arguments[0].Export()
	spec, err := json.Marshal(exported)
	if err != nil {
		panic(r.vm.NewTypeError("plot spec is not serializable: %v", err))
	}

	kind := "line"
	title := ""
	if m, ok := exported.(map[string]any); ok {
		if k, ok := m["kind"].(string); ok && k != "" {
			kind = k
		}
		if t, ok := m["title"].(string); ok {
			title = t
		}
	}

	r.blocks = append(r.blocks, api.Block{
		Type: api.BlockTypeFigure,
		Figure: &api.Figure{
			ID:    api.NewFigureID(),
			Kind:  kind,
			Title: title,
			Spec:  spec,
		},
	})
	return goja.Undefined()
}

func (r *run) argString(call goja.FunctionCall, i int, fn string) string {
	if len(call.Arguments) <= i || goja.IsUndefined(call.Arguments[i]) {
		panic(r.vm.NewTypeError("%s: argument %d is required", fn, i+1))
	}
	return call.Arguments[i].String()
}

func (r *run) optString(call goja.FunctionCall, i int) string {
	if len(call.Arguments) <= i || goja.IsUndefined(call.Arguments[i]) || goja.IsNull(call.Arguments[i]) {
		return ""
	}
	return call.Arguments[i].String()
}

func (r *run) argFloats(call goja.FunctionCall, i int) []float64 {
	if len(call.Arguments) <= i {
		panic(r.vm.NewTypeError("argument %d must be an array of numbers", i+1))
	}
	return r.exportFloats(call.Arguments[i])
}

func (r *run) exportFloats(v goja.Value) []float64 {
	switch vals := v.Export().(type) {
	case []float64:
		return vals
	case []any:
		out := make([]float64, len(vals))
		for i, raw := range vals {
			f, ok := toFloat(raw)
			if !ok {
				panic(r.vm.NewTypeError("element %d is not a number", i))
			}
			out[i] = f
		}
		return out
	default:
		panic(r.vm.NewTypeError("expected an array of numbers"))
	}
}

func (r *run) exportStrings(v goja.Value, what string) []string {
	switch vals := v.Export().(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, len(vals))
		for i, raw := range vals {
			out[i] = formatCell(raw)
		}
		return out
	default:
		panic(r.vm.NewTypeError("%s must be an array", what))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// formatCell renders a captured value for a text or table cell.
// Numbers print integers without decimals and other values rounded to
// four decimal places, keeping output deterministic across runs.
func formatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return formatNumber(n)
	case []any:
		parts := make([]string, len(n))
		for i, e := range n {
			parts[i] = formatCell(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []float64:
		parts := make([]string, len(n))
		for i, e := range n {
			parts[i] = formatNumber(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}
