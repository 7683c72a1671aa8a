// Package jetio reads jets of constituent four-vectors from JSON and CSV files.
package jetio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/jetsub/internal/kinematics"
)

// ErrFormat is returned for input that cannot be interpreted as jets.
var ErrFormat = errors.New("malformed jet input")

// Constituent is one particle as written in a JSON document. Exactly one of
// the Cartesian (px, py, pz, e) or collider (pt, eta, phi, m) forms is used.
// Missing m defaults to 0.
type Constituent struct {
	Px *float64 `json:"px,omitempty"`
	Py *float64 `json:"py,omitempty"`
	Pz *float64 `json:"pz,omitempty"`
	E  *float64 `json:"e,omitempty"`

	Pt  *float64 `json:"pt,omitempty"`
	Eta *float64 `json:"eta,omitempty"`
	Phi *float64 `json:"phi,omitempty"`
	M   *float64 `json:"m,omitempty"`
}

// Jet is a JSON jet record.
type Jet struct {
	Constituents []Constituent `json:"constituents"`
}

// Document is the top-level JSON input.
type Document struct {
	Jets []Jet `json:"jets"`
}

// FourVector converts the constituent. Range checks are left to the engine.
func (c Constituent) FourVector() (kinematics.FourVector, error) {
	cartesian := c.Px != nil || c.Py != nil || c.Pz != nil || c.E != nil
	collider := c.Pt != nil || c.Eta != nil || c.Phi != nil || c.M != nil
	switch {
	case cartesian && collider:
		return kinematics.FourVector{}, fmt.Errorf("%w: mixes px/py/pz/e with pt/eta/phi/m", ErrFormat)
	case cartesian:
		if c.Px == nil || c.Py == nil || c.Pz == nil || c.E == nil {
			return kinematics.FourVector{}, fmt.Errorf("%w: px, py, pz and e are all required", ErrFormat)
		}
		return kinematics.New(*c.Px, *c.Py, *c.Pz, *c.E), nil
	case collider:
		if c.Pt == nil || c.Eta == nil || c.Phi == nil {
			return kinematics.FourVector{}, fmt.Errorf("%w: pt, eta and phi are all required", ErrFormat)
		}
		m := 0.0
		if c.M != nil {
			m = *c.M
		}
		return kinematics.FromPtEtaPhiM(*c.Pt, *c.Eta, *c.Phi, m), nil
	default:
		return kinematics.FourVector{}, fmt.Errorf("%w: empty constituent", ErrFormat)
	}
}

// ReadJSON decodes a Document and converts every constituent.
func ReadJSON(r io.Reader) ([][]kinematics.FourVector, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	jets := make([][]kinematics.FourVector, len(doc.Jets))
	for i, jet := range doc.Jets {
		vs := make([]kinematics.FourVector, len(jet.Constituents))
		for j, c := range jet.Constituents {
			v, err := c.FourVector()
			if err != nil {
				return nil, fmt.Errorf("jet %d constituent %d: %w", i, j, err)
			}
			vs[j] = v
		}
		jets[i] = vs
	}
	return jets, nil
}

var csvHeader = []string{"jet", "px", "py", "pz", "e"}

// MaxJetGap bounds how far a CSV row's jet index may run past the highest
// index seen so far. Each skipped index becomes an empty jet, so this keeps
// the output proportional to the input size.
const MaxJetGap = 1000

// ReadCSV reads rows of jet,px,py,pz,e with a header line. Rows are grouped
// by the jet column; the result has max(jet)+1 entries and any index with no
// rows is an empty jet. An index more than MaxJetGap past the highest one
// seen so far is rejected with ErrFormat.
func ReadCSV(r io.Reader) ([][]kinematics.FourVector, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(h), csvHeader[i]) {
			return nil, fmt.Errorf("%w: header must be %s, got %s", ErrFormat,
				strings.Join(csvHeader, ","), strings.Join(header, ","))
		}
	}

	var jets [][]kinematics.FourVector
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)

		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: line %d: invalid jet index %q", ErrFormat, line, rec[0])
		}
		if idx > len(jets)+MaxJetGap {
			return nil, fmt.Errorf("%w: line %d: jet index %d skips more than %d jets", ErrFormat, line, idx, MaxJetGap)
		}
		var comp [4]float64
		for k := range comp {
			comp[k], err = strconv.ParseFloat(strings.TrimSpace(rec[k+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrFormat, line, csvHeader[k+1], err)
			}
		}
		for len(jets) <= idx {
			jets = append(jets, nil)
		}
		jets[idx] = append(jets[idx], kinematics.New(comp[0], comp[1], comp[2], comp[3]))
	}
	return jets, nil
}

// ReadFile dispatches on the file extension: .json or .csv.
func ReadFile(path string) ([][]kinematics.FourVector, error) {
	cleanPath := filepath.Clean(path)
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		return ReadJSON(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported input extension %q (want .json or .csv)", ext)
	}
}
