package cluster

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlgorithm is returned for algorithm selectors outside the closed set.
var ErrUnknownAlgorithm = errors.New("unknown clustering algorithm")

// Algorithm selects the momentum exponent of the generalized-kt measure.
type Algorithm int

const (
	// KT clusters soft pairs first (p = 1).
	KT Algorithm = iota
	// CA is Cambridge/Aachen, purely angular ordering (p = 0).
	CA
	// AntiKT clusters around hard particles first (p = −1).
	AntiKT
)

// UnknownAlgorithm is what an unparseable selector resolves to. It is never
// Valid, so any clustering set up with it fails with ErrUnknownAlgorithm.
const UnknownAlgorithm Algorithm = -1

// Exponent returns p for the algorithm.
func (a Algorithm) Exponent() float64 {
	switch a {
	case KT:
		return 1
	case CA:
		return 0
	case AntiKT:
		return -1
	}
	return 0
}

// Valid reports whether a is one of the known variants.
func (a Algorithm) Valid() bool {
	return a == KT || a == CA || a == AntiKT
}

func (a Algorithm) String() string {
	switch a {
	case KT:
		return "KT"
	case CA:
		return "CA"
	case AntiKT:
		return "AK"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a selector string onto an Algorithm. The short forms
// KT, CA and AK are accepted along with the long names, case-insensitively.
// Anything else is an error; there is no fallback variant.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kt":
		return KT, nil
	case "ca", "cambridge", "cambridge_aachen":
		return CA, nil
	case "ak", "antikt", "anti-kt", "anti_kt":
		return AntiKT, nil
	}
	return UnknownAlgorithm, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// MarshalText encodes the short selector form.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText parses a selector string.
func (a *Algorithm) UnmarshalText(b []byte) error {
	parsed, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
