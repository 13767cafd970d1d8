package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/loopsim/internal/closedloop"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/sim"
)

// Header is the column layout of a samples file.
var Header = []string{"time", "y1", "y2", "x0", "x1", "x2", "x3", "i1", "d1", "i2", "d2"}

var ErrMalformed = errors.New("storage: malformed samples")

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one row per sample. Values are written with the shortest
// representation that reads back to the same float64.
func WriteCSV(w io.Writer, tr *sim.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	row := make([]string, len(Header))
	for i, t := range tr.Times {
		row[0] = format(t)
		row[1] = format(tr.Outputs[i][0])
		row[2] = format(tr.Outputs[i][1])
		for j, v := range tr.States[i] {
			row[3+j] = format(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) (*sim.Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	for i, h := range Header {
		if records[0][i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformed, i, records[0][i], h)
		}
	}

	n := len(records) - 1
	tr := &sim.Trajectory{
		Times:   make([]float64, n),
		States:  make([]dynamo.State, n),
		Outputs: make([][2]float64, n),
	}
	for i, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %w", ErrMalformed, i+1, err)
			}
			vals[j] = v
		}
		tr.Times[i] = vals[0]
		tr.Outputs[i] = [2]float64{vals[1], vals[2]}
		tr.States[i] = dynamo.State(vals[3 : 3+closedloop.Dim])
	}
	return tr, nil
}

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// WriteJSON writes the metadata and the samples as one document.
func WriteJSON(w io.Writer, meta RunMetadata, tr *sim.Trajectory) error {
	data := ExportData{
		Run:     meta,
		Columns: Header,
		Rows:    make([][]float64, tr.Len()),
	}
	for i, t := range tr.Times {
		row := make([]float64, 0, len(Header))
		row = append(row, t, tr.Outputs[i][0], tr.Outputs[i][1])
		row = append(row, tr.States[i]...)
		data.Rows[i] = row
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
