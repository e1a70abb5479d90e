package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	// DefaultGeneratedLength is the length of passwords issued by a reset.
	DefaultGeneratedLength = 12
	// MaxGeneratedLength caps [Generate].
	MaxGeneratedLength = 256
)

// printable is ASCII letters, digits and punctuation.
const printable = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Generate returns a uniformly random password of length characters drawn
// from the printable ASCII set.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultGeneratedLength
	}
	if length > MaxGeneratedLength {
		return "", errors.New("generated password length must be <= 256")
	}

	max := big.NewInt(int64(len(printable)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = printable[n.Int64()]
	}

	return string(out), nil
}
