package password

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Generate returns length cryptographically random bytes.
func Generate(length int) ([]byte, error) {
	if length < 1 {
		return nil, fmt.Errorf("secret length must be positive, got %d", length)
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return b, nil
}

// GenerateBase64 returns length random bytes as unpadded Base64url.
func GenerateBase64(length int) (string, error) {
	b, err := Generate(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateString returns length characters drawn uniformly from characters.
func GenerateString(characters string, length int) (string, error) {
	alphabet := []rune(characters)
	if len(alphabet) == 0 {
		return "", fmt.Errorf("character set is empty")
	}
	if length < 1 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate string: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
