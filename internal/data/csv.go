// Package data loads pre-featurized transaction rows and turns them into
// fixed-length per-card sequences for the recurrent classifier.
package data

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultFeatures is the width of one encoded transaction row.
const DefaultFeatures = 220

// ErrFeatureWidth reports a row whose feature count differs from the expected width.
var ErrFeatureWidth = errors.New("unexpected feature width")

// Table holds transaction rows in file order.
type Table struct {
	Keys     []string
	Features [][]float64
	Labels   []float64
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Labels)
}

// LoadCSV reads a table from a CSV file. See ReadCSV for the format.
func LoadCSV(path string, features int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open transactions")
	}
	defer file.Close()

	t, err := ReadCSV(file, features)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadCSV parses rows of the form key,f1..fN,label where key groups the rows of
// one card and label is 0 or 1. A header row is skipped when its label cell is
// not numeric.
func ReadCSV(r io.Reader, features int) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	t := &Table{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse csv")
		}
		line++

		if len(record) < 2 {
			return nil, errors.Errorf("row %d: need at least a key and a label", line)
		}
		labelCell := record[len(record)-1]
		label, err := strconv.ParseFloat(labelCell, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, errors.Wrapf(err, "row %d: label", line)
		}
		if label != 0 && label != 1 {
			return nil, errors.Errorf("row %d: label must be 0 or 1, got %v", line, label)
		}

		cells := record[1 : len(record)-1]
		if len(cells) != features {
			return nil, errors.Wrapf(ErrFeatureWidth, "row %d: got %d features, want %d", line, len(cells), features)
		}
		row := make([]float64, features)
		for j, cell := range cells {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, feature %d", line, j)
			}
			row[j] = v
		}

		t.Keys = append(t.Keys, record[0])
		t.Features = append(t.Features, row)
		t.Labels = append(t.Labels, label)
	}

	if t.Len() == 0 {
		return nil, errors.New("no data rows")
	}
	return t, nil
}

// Window is seqLength consecutive rows of one card, labelled by its last row.
type Window struct {
	Key   string
	Rows  [][]float64
	Label float64
}

// Windows slides a window of seqLength rows over each card's history with
// stride one. Cards keep the order of their first row and rows keep file
// order. Cards with fewer than seqLength rows produce no windows.
func (t *Table) Windows(seqLength int) []Window {
	if seqLength <= 0 {
		return nil
	}

	var order []string
	byKey := make(map[string][]int)
	for i, k := range t.Keys {
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], i)
	}

	var windows []Window
	for _, k := range order {
		idx := byKey[k]
		for end := seqLength; end <= len(idx); end++ {
			rows := make([][]float64, seqLength)
			for j := range rows {
				rows[j] = t.Features[idx[end-seqLength+j]]
			}
			windows = append(windows, Window{
				Key:   k,
				Rows:  rows,
				Label: t.Labels[idx[end-1]],
			})
		}
	}
	return windows
}
