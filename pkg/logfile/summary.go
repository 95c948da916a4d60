package logfile

import (
	"encoding/csv"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one column of a log table
type Summary struct {
	Column string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	First  float64
	Last   float64
}

// Summarize computes basic statistics of a column
func (t *Table) Summarize(name string) (Summary, error) {
	if !t.Has(name) {
		return Summary{}, fmt.Errorf("no column %q", name)
	}

	data := t.Floats(name)
	s := Summary{Column: name, Count: len(data)}
	if len(data) == 0 {
		return s, nil
	}

	s.Min = floats.Min(data)
	s.Max = floats.Max(data)
	s.Mean = stat.Mean(data, nil)
	s.First = data[0]
	s.Last = data[len(data)-1]
	return s, nil
}

// WriteCSV writes the table with a header row. Short columns leave empty cells.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}

	rows := t.Len()
	record := make([]string, len(t.columns))
	for row := 0; row < rows; row++ {
		for i, name := range t.columns {
			col := t.values[name]
			record[i] = ""
			if row < len(col) {
				record[i] = col[row].String()
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
