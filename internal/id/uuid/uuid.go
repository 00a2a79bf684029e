// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 run ids.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID v7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRunID returns a UUID v7 as both its string and 16-byte forms.
func (Generator) NewRunID() (string, [16]byte, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", [16]byte{}, fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), [16]byte(id), nil
}
