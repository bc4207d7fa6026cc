// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadRational is returned for frame-rate strings that are not "a/b" or a
// plain decimal.
var ErrBadRational = errors.New("malformed rational")

// ParseFrameRate resolves a probe frame-rate string such as "30000/1001" to a
// float. The input is untrusted container metadata: only an unsigned decimal
// numerator and denominator are accepted. "0/0" (unknown) resolves to 0.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		den = "1"
	}
	n, err := parseUnsigned(num)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadRational, s)
	}
	d, err := parseUnsigned(den)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadRational, s)
	}
	if d == 0 {
		return 0, nil
	}
	return n / d, nil
}

func parseUnsigned(s string) (float64, error) {
	if s == "" {
		return 0, ErrBadRational
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrBadRational
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrBadRational
	}
	return v, nil
}
