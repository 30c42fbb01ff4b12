// Package diag carries source positions and leveled diagnostics shared by
// every phase of the Korlang pipeline, from the lexer through codegen.
package diag

import (
	"fmt"
	"strings"
	"sync"
)

// Position is a (line, column, byte-offset) triple, the same shape as
// go/token.Position without the filename, since a FileSet already knows it.
type Position struct {
	Line   int
	Col    int
	Offset int
}

// Span is a source range. Invariant: Start.Offset <= End.Offset.
type Span struct {
	Start Position
	End   Position
}

// NewSpan builds a Span, guaranteeing the start/end ordering invariant
// by swapping the endpoints if the caller passed them backwards.
func NewSpan(start, end Position) Span {
	if end.Offset < start.Offset {
		start, end = end, start
	}
	return Span{Start: start, End: end}
}

// Level is the severity of a diagnostic.
type Level int

const (
	Error Level = iota
	Warning
	Note
	Bug
)

func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	case Bug:
		return "internal compiler error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single leveled message tied to a span. It implements
// error so it can flow through ordinary Go error-handling paths too.
type Diagnostic struct {
	Level   Level
	Message string
	Span    Span
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Level, d.Message)
}

func New(level Level, span Span, message string) Diagnostic {
	return Diagnostic{Level: level, Message: message, Span: span}
}

// Errorf builds an Error-level diagnostic with a formatted message, the
// sugar form that sits alongside the full struct literal (both styles
// are kept since callers reach for each in different places).
func Errorf(span Span, format string, args ...interface{}) Diagnostic {
	return New(Error, span, fmt.Sprintf(format, args...))
}

func Warnf(span Span, format string, args ...interface{}) Diagnostic {
	return New(Warning, span, fmt.Sprintf(format, args...))
}

func Notef(span Span, format string, args ...interface{}) Diagnostic {
	return New(Note, span, fmt.Sprintf(format, args...))
}

func Bugf(span Span, format string, args ...interface{}) Diagnostic {
	return New(Bug, span, fmt.Sprintf(format, args...))
}

// Bag accumulates diagnostics across a phase. Phases never early-exit on
// the first mismatch; they run to completion and hand the Bag to the
// caller, which decides whether to abort the pipeline. The analyzer
// fans predeclaration and body-checking out across an errgroup, so Bag
// guards its slice with a mutex rather than requiring every caller to
// serialize.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (b *Bag) Add(d Diagnostic) {
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
}

func (b *Bag) Addf(level Level, span Span, format string, args ...interface{}) {
	b.Add(New(level, span, fmt.Sprintf(format, args...)))
}

// All returns every diagnostic recorded so far, in the order they were added.
func (b *Bag) All() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Errors returns only the Error and Bug level diagnostics.
func (b *Bag) Errors() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Diagnostic
	for _, d := range b.items {
		if d.Level == Error || d.Level == Bug {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bag) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.items {
		if d.Level == Error || d.Level == Bug {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Merge appends another bag's diagnostics onto b.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	other.mu.Lock()
	items := make([]Diagnostic, len(other.items))
	copy(items, other.items)
	other.mu.Unlock()

	b.mu.Lock()
	b.items = append(b.items, items...)
	b.mu.Unlock()
}

// FileSet maps byte offsets in a named source back to Positions, mirroring
// go/token.FileSet's role without the multi-file packing scheme, since a
// Korlang compilation unit is always a single file.
type FileSet struct {
	Name string
	src  string
	// lineStarts[i] is the byte offset of the first byte of line i+1.
	lineStarts []int
}

func NewFileSet(name, src string) *FileSet {
	fs := &FileSet{Name: name, src: src, lineStarts: []int{0}}
	for i, c := range src {
		if c == '\n' {
			fs.lineStarts = append(fs.lineStarts, i+1)
		}
	}
	return fs
}

// PositionFor converts a byte offset into a line/column Position. Columns
// are 1-based and counted in bytes, matching the lexer's own counting.
func (fs *FileSet) PositionFor(offset int) Position {
	line := 1
	for i := len(fs.lineStarts) - 1; i >= 0; i-- {
		if fs.lineStarts[i] <= offset {
			line = i + 1
			return Position{Line: line, Col: offset - fs.lineStarts[i] + 1, Offset: offset}
		}
	}
	return Position{Line: line, Col: offset + 1, Offset: offset}
}

func (fs *FileSet) Line(n int) string {
	if n < 1 || n > len(fs.lineStarts) {
		return ""
	}
	start := fs.lineStarts[n-1]
	end := len(fs.src)
	if n < len(fs.lineStarts) {
		end = fs.lineStarts[n] - 1
	}
	if end < start {
		end = start
	}
	return strings.TrimRight(fs.src[start:end], "\r")
}

// Render formats a diagnostic the way a terminal compiler front-end does:
// file:line:col: level: message, the source line, and a ^~~~ underline.
func Render(fs *FileSet, d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", fs.Name, d.Span.Start.Line, d.Span.Start.Col, d.Level, d.Message)
	line := fs.Line(d.Span.Start.Line)
	if line == "" {
		return b.String()
	}
	b.WriteString(line)
	b.WriteByte('\n')

	width := d.Span.End.Offset - d.Span.Start.Offset
	if width < 1 {
		width = 1
	}
	if d.Span.End.Line != d.Span.Start.Line {
		width = len(line) - (d.Span.Start.Col - 1)
		if width < 1 {
			width = 1
		}
	}
	col := d.Span.Start.Col
	if col < 1 {
		col = 1
	}
	if col-1 > len(line) {
		col = len(line) + 1
	}
	b.WriteString(strings.Repeat(" ", col-1))
	b.WriteByte('^')
	if width > 1 {
		b.WriteString(strings.Repeat("~", width-1))
	}
	b.WriteByte('\n')
	return b.String()
}
