package jetio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/jetsub/internal/kinematics"
)

func TestReadJSON(t *testing.T) {
	doc := `{"jets": [
  {"constituents": [
    {"px": 1, "py": 2, "pz": 3, "e": 10},
    {"pt": 100, "eta": 0, "phi": 0.4}
  ]},
  {"constituents": []},
  {"constituents": [{"pt": 50, "eta": 0.5, "phi": 1, "m": 12}]}
]}`
	jets, err := ReadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, jets, 3)

	assert.Equal(t, kinematics.New(1, 2, 3, 10), jets[0][0])
	assert.InDelta(t, 100, jets[0][1].Pt(), 1e-9)
	assert.Equal(t, 0.0, jets[0][1].M())
	assert.Empty(t, jets[1])
	assert.InDelta(t, 12, jets[2][0].M(), 1e-9)
}

func TestReadJSONErrors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"syntax", `{"jets": [`},
		{"unknown_field", `{"jets": [], "events": 3}`},
		{"mixed_forms", `{"jets": [{"constituents": [{"px": 1, "pt": 2}]}]}`},
		{"partial_cartesian", `{"jets": [{"constituents": [{"px": 1, "py": 2, "pz": 3}]}]}`},
		{"partial_collider", `{"jets": [{"constituents": [{"pt": 1, "eta": 0}]}]}`},
		{"empty_constituent", `{"jets": [{"constituents": [{}]}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tc.doc))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("ReadJSON() error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	data := `jet,px,py,pz,e
# a comment line
0, 1, 0, 0, 1
0, 0, 1, 0, 1
2, 3, 4, 0, 6
`
	jets, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, jets, 3)
	assert.Len(t, jets[0], 2)
	assert.Empty(t, jets[1], "gaps in the jet column are empty jets")
	assert.Equal(t, []kinematics.FourVector{kinematics.New(3, 4, 0, 6)}, jets[2])
}

func TestReadCSVKeepsNonFiniteValues(t *testing.T) {
	// Rejection of NaN happens per jet in the engine, not at read time.
	jets, err := ReadCSV(strings.NewReader("jet,px,py,pz,e\n0,NaN,0,0,1\n"))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(jets[0][0].Px))
}

func TestReadCSVErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"bad_header", "id,px,py,pz,e\n"},
		{"short_row", "jet,px,py,pz,e\n0,1,2,3\n"},
		{"negative_index", "jet,px,py,pz,e\n-1,1,2,3,4\n"},
		{"bad_number", "jet,px,py,pz,e\n0,1,x,3,4\n"},
		{"runaway_index", "jet,px,py,pz,e\n20000000,1,0,0,1\n"},
		{"runaway_index_after_rows", "jet,px,py,pz,e\n0,1,0,0,1\n1002,1,0,0,1\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.data))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	jets, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, jets)
}

func TestReadCSVGapLimit(t *testing.T) {
	// From an empty start the largest accepted index is MaxJetGap.
	jets, err := ReadCSV(strings.NewReader("jet,px,py,pz,e\n1000,1,0,0,1\n"))
	require.NoError(t, err)
	require.Len(t, jets, MaxJetGap+1)
	assert.Len(t, jets[MaxJetGap], 1)

	// The bound is relative to the highest index already read.
	jets, err = ReadCSV(strings.NewReader("jet,px,py,pz,e\n1000,1,0,0,1\n2001,1,0,0,1\n"))
	require.NoError(t, err)
	assert.Len(t, jets, 2002)

	_, err = ReadCSV(strings.NewReader("jet,px,py,pz,e\n1001,1,0,0,1\n"))
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "skips more than 1000 jets")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "jets.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"jets":[{"constituents":[{"px":1,"py":0,"pz":0,"e":1}]}]}`), 0644))
	csvPath := filepath.Join(dir, "jets.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("jet,px,py,pz,e\n0,1,0,0,1\n"), 0644))

	fromJSON, err := ReadFile(jsonPath)
	require.NoError(t, err)
	fromCSV, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromCSV)

	txtPath := filepath.Join(dir, "jets.txt")
	require.NoError(t, os.WriteFile(txtPath, nil, 0644))
	_, err = ReadFile(txtPath)
	assert.ErrorContains(t, err, "unsupported input extension")

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
