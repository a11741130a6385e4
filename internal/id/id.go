// Package id generates the opaque identifiers handed out by the server.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// jobAlphabet avoids characters that need escaping in URLs or get mangled by case-insensitive tools.
const jobAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const jobIDLength = 16

// Generate creates a prefixed NanoID, e.g. "job-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewJobID returns a fetch job handle such as "job-3k9x0c1q2w8e7r6t".
func NewJobID() (string, error) {
	id, err := gonanoid.Generate(jobAlphabet, jobIDLength)
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return "job-" + id, nil
}
