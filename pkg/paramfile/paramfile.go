// Package paramfile reads and writes elastix parameter files: one
// "(Key value ...)" pair per line, with "//" line comments.
package paramfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Map is an insertion-ordered set of parameters.
// Values are kept as raw text, including the leading space and any quoting,
// so a file round-trips without reformatting.
type Map struct {
	keys   []string
	values map[string]string
}

// NewMap returns an empty map
func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

// Len returns the number of parameters
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns parameter names in first-seen order
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the raw value text of key
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores a raw value. An existing key keeps its position.
func (m *Map) Set(key, raw string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = raw
}

// SetString stores a single quoted string value
func (m *Map) SetString(key, value string) {
	m.Set(key, ` "`+value+`"`)
}

// Strings returns the value of key split into tokens with quotes removed
func (m *Map) Strings(key string) []string {
	raw, ok := m.values[key]
	if !ok {
		return nil
	}
	return splitValues(raw)
}

// splitValues tokenizes a raw value, keeping quoted text together
func splitValues(raw string) []string {
	var (
		out     []string
		current strings.Builder
		quoted  bool
		started bool
	)
	flush := func() {
		if started {
			out = append(out, current.String())
			current.Reset()
			started = false
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return out
}

// Parse reads parameters from r. Comment lines, blank lines and lines that
// are not a parenthesised pair are skipped.
func Parse(r io.Reader) (*Map, error) {
	m := NewMap()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) <= 2 || strings.HasPrefix(line, "//") {
			continue
		}
		if line[0] != '(' || line[len(line)-1] != ')' {
			continue
		}

		key, raw := splitPair(line)
		if key == "" {
			continue
		}
		m.Set(key, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// splitPair splits "(Key value)" into "Key" and " value"
func splitPair(line string) (string, string) {
	inner := line[1 : len(line)-1]
	idx := strings.IndexAny(inner, " \t")
	if idx < 0 {
		return inner, ""
	}
	return inner[:idx], inner[idx:]
}

// Load reads the parameter file at path
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parameter file: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// WriteTo writes one "(Key value)" line per parameter
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, key := range m.keys {
		n, err := fmt.Fprintf(w, "(%s%s)\n", key, m.values[key])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String renders the map in parameter file form
func (m *Map) String() string {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)
	return buf.String()
}

// Save writes the map to path
func (m *Map) Save(path string) error {
	if err := os.WriteFile(path, []byte(m.String()), 0644); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	return nil
}
