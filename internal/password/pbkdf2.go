package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const PBKDF2Key = "PBKDF2"

// PRF is the pseudo-random function of PBKDF2.
type PRF string

const (
	HMACSHA256 PRF = "HMACSHA256"
	HMACSHA512 PRF = "HMACSHA512"
)

func (p PRF) hash() (func() hash.Hash, bool) {
	switch p {
	case HMACSHA256:
		return sha256.New, true
	case HMACSHA512:
		return sha512.New, true
	default:
		return nil, false
	}
}

type PBKDF2Settings struct {
	PRF        PRF
	Iterations int
	SaltLength int
	// HashLength of 0 means the salt length.
	HashLength int
}

func DefaultPBKDF2Settings() PBKDF2Settings {
	return PBKDF2Settings{PRF: HMACSHA256, Iterations: 600000, SaltLength: 32}
}

// PBKDF2Strategy encodes "PBKDF2:<prf>:<iterations>:<salt>:<hash>".
type PBKDF2Strategy struct {
	settings PBKDF2Settings
}

func NewPBKDF2Strategy(settings PBKDF2Settings) (*PBKDF2Strategy, error) {
	if _, ok := settings.PRF.hash(); !ok {
		return nil, fmt.Errorf("unsupported pbkdf2 prf %q", settings.PRF)
	}
	if settings.Iterations < 1 || settings.SaltLength < 1 || settings.HashLength < 0 {
		return nil, fmt.Errorf("invalid pbkdf2 settings: iterations=%d salt=%d hash=%d",
			settings.Iterations, settings.SaltLength, settings.HashLength)
	}
	return &PBKDF2Strategy{settings: settings}, nil
}

func (*PBKDF2Strategy) Key() string { return PBKDF2Key }

func (s *PBKDF2Strategy) Hash(plaintext string) (Password, error) {
	salt := make([]byte, s.settings.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	length := s.settings.HashLength
	if length == 0 {
		length = len(salt)
	}
	p := &pbkdf2Password{prf: s.settings.PRF, iterations: s.settings.Iterations, salt: salt}
	p.hash = p.derive(plaintext, length)
	return p, nil
}

func (*PBKDF2Strategy) Decode(payload string) (Password, error) {
	parts := strings.Split(payload, separator)
	if len(parts) != 4 {
		return nil, malformed(PBKDF2Key, "expected 4 segments")
	}
	prf := PRF(parts[0])
	if _, ok := prf.hash(); !ok {
		return nil, malformed(PBKDF2Key, "unsupported prf")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return nil, malformed(PBKDF2Key, "invalid iterations")
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, malformed(PBKDF2Key, "invalid salt")
	}
	sum, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(sum) == 0 {
		return nil, malformed(PBKDF2Key, "invalid hash")
	}
	return &pbkdf2Password{prf: prf, iterations: iterations, salt: salt, hash: sum}, nil
}

type pbkdf2Password struct {
	prf        PRF
	iterations int
	salt       []byte
	hash       []byte
}

func (p *pbkdf2Password) derive(plaintext string, length int) []byte {
	h, _ := p.prf.hash()
	return pbkdf2.Key([]byte(plaintext), p.salt, p.iterations, length, h)
}

func (p *pbkdf2Password) Encode() string {
	return encode(PBKDF2Key,
		string(p.prf),
		strconv.Itoa(p.iterations),
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.hash),
	)
}

func (p *pbkdf2Password) IsMatch(candidate string) bool {
	return subtle.ConstantTimeCompare(p.derive(candidate, len(p.hash)), p.hash) == 1
}
