// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidID is returned for job IDs that cannot name a working directory.
var ErrInvalidID = errors.New("invalid job id")

// IDFromKey derives the job ID from an already decoded object key: the base
// name with its final extension stripped.
func IDFromKey(key string) string {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ValidateID rejects IDs that are empty, relative path elements, or contain
// separators or control characters.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return ErrInvalidID
	case strings.ContainsAny(id, "/\\"):
		return ErrInvalidID
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidID
		}
	}
	return nil
}
