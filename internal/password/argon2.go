package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const Argon2idKey = "ARGON2ID"

type Argon2idSettings struct {
	Time       uint32
	MemoryKiB  uint32
	Threads    uint8
	SaltLength int
	KeyLength  uint32
}

func DefaultArgon2idSettings() Argon2idSettings {
	return Argon2idSettings{Time: 3, MemoryKiB: 64 * 1024, Threads: 2, SaltLength: 16, KeyLength: 32}
}

// Argon2idStrategy encodes "ARGON2ID:<time>:<memoryKiB>:<threads>:<salt>:<hash>".
type Argon2idStrategy struct {
	settings Argon2idSettings
}

func NewArgon2idStrategy(settings Argon2idSettings) (*Argon2idStrategy, error) {
	if settings.Time < 1 || settings.MemoryKiB < 8 || settings.Threads < 1 ||
		settings.SaltLength < 8 || settings.KeyLength < 16 {
		return nil, fmt.Errorf("invalid argon2id settings: %+v", settings)
	}
	return &Argon2idStrategy{settings: settings}, nil
}

func (*Argon2idStrategy) Key() string { return Argon2idKey }

func (s *Argon2idStrategy) Hash(plaintext string) (Password, error) {
	salt := make([]byte, s.settings.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	p := &argon2idPassword{
		time:    s.settings.Time,
		memory:  s.settings.MemoryKiB,
		threads: s.settings.Threads,
		salt:    salt,
	}
	p.hash = p.derive(plaintext, s.settings.KeyLength)
	return p, nil
}

func (*Argon2idStrategy) Decode(payload string) (Password, error) {
	parts := strings.Split(payload, separator)
	if len(parts) != 5 {
		return nil, malformed(Argon2idKey, "expected 5 segments")
	}
	t, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || t < 1 {
		return nil, malformed(Argon2idKey, "invalid time")
	}
	m, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || m < 8 {
		return nil, malformed(Argon2idKey, "invalid memory")
	}
	threads, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil || threads < 1 {
		return nil, malformed(Argon2idKey, "invalid threads")
	}
	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return nil, malformed(Argon2idKey, "invalid salt")
	}
	sum, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(sum) == 0 {
		return nil, malformed(Argon2idKey, "invalid hash")
	}
	return &argon2idPassword{time: uint32(t), memory: uint32(m), threads: uint8(threads), salt: salt, hash: sum}, nil
}

type argon2idPassword struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func (p *argon2idPassword) derive(plaintext string, length uint32) []byte {
	return argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, length)
}

func (p *argon2idPassword) Encode() string {
	return encode(Argon2idKey,
		strconv.FormatUint(uint64(p.time), 10),
		strconv.FormatUint(uint64(p.memory), 10),
		strconv.FormatUint(uint64(p.threads), 10),
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.hash),
	)
}

func (p *argon2idPassword) IsMatch(candidate string) bool {
	return subtle.ConstantTimeCompare(p.derive(candidate, uint32(len(p.hash))), p.hash) == 1
}
