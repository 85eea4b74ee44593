package access

import (
	"crypto/rand"
	"io"

	goerrors "github.com/goliatone/go-errors"
)

// CodeAlphabet is the fixed 31-symbol set used for access codes. Visually
// confusable characters (0/O, 1/I, 9/g) are excluded so codes survive being
// read aloud or retyped.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ2345678"

// DefaultCodeLength is the length of generated access codes.
const DefaultCodeLength = 8

// MaxGenerationAttempts caps uniqueness-collision retries on the creation
// path before reporting ErrCodeGenerationExhausted.
const MaxGenerationAttempts = 5

// CodeGenerator maps secure random bytes into human typeable codes.
//
// The per-byte modulo mapping carries a slight bias toward the first symbols
// of the alphabet. Acceptable for a short-lived code redeemed within a
// registration window of minutes; swap the reader for a rejection sampler if
// a stricter threat model ever demands uniformity.
type CodeGenerator struct {
	random io.Reader
}

// NewCodeGenerator returns a generator backed by crypto/rand.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{random: rand.Reader}
}

// WithRandom overrides the randomness source. Used by tests.
func (g *CodeGenerator) WithRandom(r io.Reader) *CodeGenerator {
	if r != nil {
		g.random = r
	}
	return g
}

// Generate draws length random bytes and maps each through the fixed
// alphabet.
func (g *CodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for access code")
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}

	return string(out), nil
}
