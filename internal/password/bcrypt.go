package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const BcryptKey = "BCRYPT"

// BcryptStrategy encodes "BCRYPT:<bcrypt hash>"; the cost travels in the hash.
type BcryptStrategy struct {
	cost int
}

func NewBcryptStrategy(cost int) (*BcryptStrategy, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	return &BcryptStrategy{cost: cost}, nil
}

func (*BcryptStrategy) Key() string { return BcryptKey }

func (s *BcryptStrategy) Hash(plaintext string) (Password, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hash: %w", err)
	}
	return bcryptPassword(sum), nil
}

func (*BcryptStrategy) Decode(payload string) (Password, error) {
	if _, err := bcrypt.Cost([]byte(payload)); err != nil {
		return nil, malformed(BcryptKey, err.Error())
	}
	return bcryptPassword(payload), nil
}

type bcryptPassword []byte

func (p bcryptPassword) Encode() string { return encode(BcryptKey, string(p)) }

func (p bcryptPassword) IsMatch(candidate string) bool {
	return bcrypt.CompareHashAndPassword(p, []byte(candidate)) == nil
}
