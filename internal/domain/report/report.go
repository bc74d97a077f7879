// Package report defines the issue and report values shared by every
// checking stage of the pipeline: pre-submission validation, compliance
// re-parsing, payer rules, and batch assembly. A report is an ordered list
// of issues; a report is valid when it carries no error-severity issue.
package report

import (
	"fmt"
	"strings"
)

// Severity ranks an issue. Errors block submission; warnings and
// informational notes ride along in the report.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue is one finding: a stable machine code, the field or segment path it
// concerns, and a human message.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", i.Severity, i.Code, i.Field, i.Message)
}

// Report accumulates issues from one checking stage.
type Report struct {
	Stage  string  `json:"stage,omitempty"`
	Issues []Issue `json:"issues"`
}

// New returns an empty report for the named stage.
func New(stage string) *Report {
	return &Report{Stage: stage}
}

// Add appends an issue.
func (r *Report) Add(sev Severity, code, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Code:     code,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Error appends an error-severity issue.
func (r *Report) Error(code, field, format string, args ...any) {
	r.Add(SeverityError, code, field, format, args...)
}

// Warn appends a warning-severity issue.
func (r *Report) Warn(code, field, format string, args ...any) {
	r.Add(SeverityWarning, code, field, format, args...)
}

// Info appends an informational issue.
func (r *Report) Info(code, field, format string, args ...any) {
	r.Add(SeverityInfo, code, field, format, args...)
}

// Merge appends every issue of other, keeping arrival order.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Valid reports whether the report carries no error-severity issue.
// Warnings and informational notes do not block submission.
func (r *Report) Valid() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity issues only.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Count returns the number of issues at the given severity.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// HasCode reports whether any issue carries the given code.
func (r *Report) HasCode(code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

// String renders the report as a readable table, one issue per line.
func (r *Report) String() string {
	var b strings.Builder
	if r.Stage != "" {
		fmt.Fprintf(&b, "%s: ", r.Stage)
	}
	if len(r.Issues) == 0 {
		b.WriteString("clean")
		return b.String()
	}
	fmt.Fprintf(&b, "%d error(s), %d warning(s), %d note(s)\n",
		r.Count(SeverityError), r.Count(SeverityWarning), r.Count(SeverityInfo))
	for _, i := range r.Issues {
		b.WriteString("  " + i.String() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
