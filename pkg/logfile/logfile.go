// Package logfile reads the IterationInfo.<stage>.R<level>.txt files elastix
// writes for each resolution level.
//
// The first line holds column headers such as "1:ItNr 2:Metric 3a:Time
// 3b:StepSize 4:||Gradient|| Time[ms]"; every following line holds one
// iteration. Columns keep their header order and values keep their integer or
// floating-point type.
package logfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"goelastix/pkg/result"
)

// Value is a single log entry
type Value struct {
	Int   int64
	Float float64
	IsInt bool
}

// Float64 returns the value as a float regardless of its parsed type
func (v Value) Float64() float64 {
	if v.IsInt {
		return float64(v.Int)
	}
	return v.Float
}

func (v Value) String() string {
	if v.IsInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}

// ParseValue parses token as an integer, falling back to a float
func ParseValue(token string) (Value, error) {
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return Value{Int: i, IsInt: true}, nil
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return Value{}, err
	}
	return Value{Float: f}, nil
}

// ParseError locates a malformed header or value
type ParseError struct {
	Line   int
	Column string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d, column %q: %s %q", e.Line, e.Column, e.Reason, e.Token)
}

// Table maps column names to their values in header order
type Table struct {
	columns []string
	values  map[string][]Value
}

// Columns returns the column names in header order
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Has reports whether the table has a column called name
func (t *Table) Has(name string) bool {
	_, ok := t.values[name]
	return ok
}

// Column returns the values of a column, or nil if it does not exist
func (t *Table) Column(name string) []Value {
	return t.values[name]
}

// Floats returns a column converted to float64
func (t *Table) Floats(name string) []float64 {
	col := t.values[name]
	if col == nil {
		return nil
	}
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = v.Float64()
	}
	return out
}

// Len returns the number of values in the longest column
func (t *Table) Len() int {
	n := 0
	for _, col := range t.values {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}

// indexSegment matches the numbering elastix puts in front of each label
var indexSegment = regexp.MustCompile(`^[0-9]+[a-z]?$`)

// columnLabel turns a header token such as "3a:Time" into "time"
func columnLabel(token string) string {
	segments := strings.Split(token, ":")
	if len(segments) == 1 {
		return strings.ToLower(token)
	}

	var label strings.Builder
	for _, seg := range segments {
		if indexSegment.MatchString(seg) {
			continue
		}
		label.WriteString(seg)
	}
	return strings.ToLower(label.String())
}

// Parse reads the log file at path
func Parse(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	table, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return table, nil
}

// ParseReader reads a log table from r
func ParseReader(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, &ParseError{Line: 1, Reason: "missing header"}
	}

	head := strings.Fields(scanner.Text())
	if len(head) == 0 {
		return nil, &ParseError{Line: 1, Reason: "empty header"}
	}

	table := &Table{values: make(map[string][]Value, len(head))}
	for i, token := range head {
		// the last column (wall-clock time) carries no index prefix
		name := strings.ToLower(token)
		if i < len(head)-1 {
			name = columnLabel(token)
		}
		if name == "" {
			return nil, &ParseError{Line: 1, Column: token, Token: token, Reason: "empty column label"}
		}
		if _, dup := table.values[name]; dup {
			return nil, &ParseError{Line: 1, Column: name, Token: token, Reason: "duplicate column"}
		}
		table.columns = append(table.columns, name)
		table.values[name] = []Value{}
	}

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		tokens := strings.Fields(scanner.Text())
		for i, token := range tokens {
			if i >= len(table.columns) {
				break
			}
			name := table.columns[i]
			v, err := ParseValue(token)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Column: name, Token: token, Reason: "not a number"}
			}
			table.values[name] = append(table.values[name], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// Discover returns the iteration logs in an elastix output directory,
// sorted by stage and resolution level
func Discover(dir string) ([]string, error) {
	logs, err := result.Glob(dir, "IterationInfo.*.R*.txt")
	if err != nil {
		return nil, err
	}

	sort.SliceStable(logs, func(i, j int) bool {
		si, li := logOrder(logs[i])
		sj, lj := logOrder(logs[j])
		if si != sj {
			return si < sj
		}
		return li < lj
	})
	return logs, nil
}

var iterationLogName = regexp.MustCompile(`^IterationInfo\.(\d+)\.R(\d+)\.txt$`)

// logOrder returns the stage and resolution level encoded in a log name.
// Names that do not follow the pattern sort last.
func logOrder(path string) (stage, level int) {
	m := iterationLogName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return math.MaxInt, math.MaxInt
	}
	stage, err := strconv.Atoi(m[1])
	if err != nil {
		return math.MaxInt, math.MaxInt
	}
	level, err = strconv.Atoi(m[2])
	if err != nil {
		return stage, math.MaxInt
	}
	return stage, level
}
