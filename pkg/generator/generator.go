package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

// CodeGenerator produces an analysis code fragment for a resolved
// query. Implementations must be safe for concurrent use.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, req *Request) (string, error)
}

// Request carries everything the collaborator needs to write code for
// one attempt. On retries PriorCode and PriorError describe the failed
// attempt so the next fragment can avoid the same mistake.
type Request struct {
	Resolved semantic.ResolvedQuery
	Schema   string   // semantic-layer summary of the dataset
	Columns  []string // column names visible in the working dataset

	PriorCode  string
	PriorError *api.Error
}

// BuildPrompt renders the request into the instruction prompt sent to
// the model. The contract it states mirrors the sandbox namespace
// exactly; anything outside it would fail at execution time.
func BuildPrompt(req *Request) string {
	var b strings.Builder

	b.WriteString("You are a data analyst. Write JavaScript that answers the question below.\n\n")
	b.WriteString("Available API (nothing else exists; no require, no imports):\n")
	b.WriteString("  df.columns() -> array of column names\n")
	b.WriteString("  df.rowCount() -> number of rows\n")
	b.WriteString("  df.col(name) -> column values\n")
	b.WriteString("  df.numeric(name) -> numeric column values\n")
	b.WriteString("  df.groupBy(byColumn, valueColumn, agg) -> [{key, value, count}]; agg is mean|median|sum|min|max|count\n")
	b.WriteString("  stats.mean/median/sum/min/max/count(values), stats.corr(xs, ys), stats.linreg(xs, ys) -> {slope, intercept, r2}\n")
	b.WriteString("  print(...values), table(columns, rows), plot({kind, title, ...})\n\n")

	b.WriteString("Dataset schema:\n")
	b.WriteString(req.Schema)
	b.WriteString("\n")

	if len(req.Columns) > 0 {
		b.WriteString("Columns available in the working dataset: ")
		b.WriteString(strings.Join(req.Columns, ", "))
		b.WriteString("\n")
	}

	if len(req.Resolved.Resolutions) > 0 {
		b.WriteString("\nTerms already resolved to dataset columns:\n")
		for _, r := range req.Resolved.Resolutions {
			if r.Value != "" {
				fmt.Fprintf(&b, "  %q -> column %q, value %q\n", r.Span, r.Column, r.Value)
			} else {
				fmt.Fprintf(&b, "  %q -> column %q\n", r.Span, r.Column)
			}
		}
	}

	if req.PriorError != nil {
		b.WriteString("\nYour previous attempt failed. Fix the problem and try again.\n")
		fmt.Fprintf(&b, "Error (%s): %s\n", req.PriorError.Kind, req.PriorError.Message)
		if req.PriorCode != "" {
			b.WriteString("Previous code:\n")
			b.WriteString(req.PriorCode)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(req.Resolved.Query)
	b.WriteString("\n\nRespond with ONLY the JavaScript code, no explanation, no markdown fences.\n")

	return b.String()
}

// StripFences removes surrounding markdown code fences that models emit
// despite instructions, including a language tag on the opening fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		// Opening fence may carry a language tag like "js" or "javascript".
		if first == "" || len(first) <= 12 && !strings.ContainsAny(first, " ;(){}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
