// Package token generates random URL-safe share tokens.
package token

import (
	"fmt"
	"math"

	"github.com/jaevor/go-nanoid"
)

// AlphabetSize is the number of symbols a token character is drawn from (A-Z a-z 0-9 _ -).
const AlphabetSize = 64

// Token lengths accepted by NewGenerator.
const (
	MinLength = 2
	MaxLength = 255
)

// Generator produces fixed-length tokens from crypto/rand.
// Each call is independent of earlier outputs.
type Generator struct {
	length int
	next   func() string
}

// NewGenerator creates a generator for tokens of the given length.
func NewGenerator(length int) (*Generator, error) {
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("token: length %d must be between %d and %d", length, MinLength, MaxLength)
	}

	next, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("token: length %d: %w", length, err)
	}

	return &Generator{length: length, next: next}, nil
}

// Generate returns a new candidate token.
func (g *Generator) Generate() string {
	return g.next()
}

// Length returns the number of characters per token.
func (g *Generator) Length() int {
	return g.length
}

// Space returns the number of distinct tokens of the given length.
func Space(length int) float64 {
	return math.Pow(AlphabetSize, float64(length))
}
