package utils

import (
	"fmt"
	"regexp"
)

// Length limits for externally supplied identifiers.
const (
	MaxIDLength      = 128
	MaxSubpathLength = 4096
)

// identifierPattern bounds project, caller and build identifiers to names
// that are safe in log lines, URLs and filesystem paths.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateIdentifier checks an externally supplied ID (project, caller,
// build). Identifiers become path components, so the character set is strict.
func ValidateIdentifier(kind, v string) error {
	if v == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if len(v) > MaxIDLength {
		return fmt.Errorf("%s exceeds %d characters", kind, MaxIDLength)
	}
	if !identifierPattern.MatchString(v) {
		return fmt.Errorf("%s contains invalid characters", kind)
	}
	return nil
}

// ValidateSubpathLength bounds a requested path before any resolution work.
// Content rules live in the path guard; this only rejects absurd lengths.
func ValidateSubpathLength(p string) error {
	if len(p) > MaxSubpathLength {
		return fmt.Errorf("path exceeds %d characters", MaxSubpathLength)
	}
	return nil
}
