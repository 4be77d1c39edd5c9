// Package id generates identifiers for licenses and transient server objects.
package id

import (
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// licenseSuffixAlphabet is alphanumeric only so generated license IDs stay readable on a certificate.
const licenseSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// licenseSuffixLen is the length of the random part of a license ID.
const licenseSuffixLen = 4

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "sse-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// LicenseID builds a license identifier of the form PREFIX-XXXX-<unix millis>.
//
// The random part is only four characters, so two IDs generated within the same
// millisecond can collide. Callers must reserve the ID atomically and retry on conflict.
func LicenseID(prefix string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(licenseSuffixAlphabet, licenseSuffixLen)
	if err != nil {
		return "", fmt.Errorf("generate license suffix: %w", err)
	}
	return prefix + "-" + suffix + "-" + strconv.FormatInt(now.UnixMilli(), 10), nil
}
