// Package training builds urgency classifiers offline: it generates or reads
// a labeled dataset, splits it, fits a tree, scores it and produces the model
// artifacts inference loads.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// LabelColumn is the CSV header of the target column.
const LabelColumn = "urgency"

// Row is one labeled feature vector.
type Row struct {
	Features features.Vector
	Urgency  urgency.Level
}

// Dataset is an ordered list of labeled rows.
type Dataset struct {
	Rows []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Matrix returns the feature rows and their label indices in urgency.Levels
// order.
func (d *Dataset) Matrix() ([][]float64, []int) {
	X := make([][]float64, len(d.Rows))
	y := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		X[i] = r.Features
		y[i] = labelIndex(r.Urgency)
	}
	return X, y
}

// Counts returns the number of rows per urgency level.
func (d *Dataset) Counts() map[urgency.Level]int {
	out := make(map[urgency.Level]int, len(urgency.Levels))
	for _, r := range d.Rows {
		out[r.Urgency]++
	}
	return out
}

func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{Rows: make([]Row, len(idx))}
	for i, j := range idx {
		out.Rows[i] = d.Rows[j]
	}
	return out
}

func labelIndex(l urgency.Level) int {
	for i, v := range urgency.Levels {
		if v == l {
			return i
		}
	}
	return -1
}

// ReadCSV parses a dataset with a header row. Columns are located by name, so
// their order in the file does not matter, but every feature column and the
// label column must be present.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	cols := make([]int, features.NumFeatures)
	for i, name := range features.Columns {
		p, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("dataset is missing column %q", name)
		}
		cols[i] = p
	}
	labelPos, ok := pos[LabelColumn]
	if !ok {
		return nil, fmt.Errorf("dataset is missing column %q", LabelColumn)
	}

	ds := &Dataset{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		vec := make(features.Vector, features.NumFeatures)
		for i, p := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[p]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: column %q: invalid number %q", line, features.Columns[i], rec[p])
			}
			vec[i] = v
		}
		lvl, err := urgency.Parse(strings.TrimSpace(rec[labelPos]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ds.Rows = append(ds.Rows, Row{Features: vec, Urgency: lvl})
	}

	if ds.Len() == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}

// WriteCSV writes the dataset with a header of features.Columns followed by
// the label column.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(append([]string(nil), features.Columns...), LabelColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(header))
	for i, r := range d.Rows {
		if len(r.Features) != features.NumFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(r.Features), features.NumFeatures)
		}
		for j, v := range r.Features {
			rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rec[len(rec)-1] = string(r.Urgency)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
