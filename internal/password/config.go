package password

// Config selects the hashing strategy and tunes every registered strategy.
type Config struct {
	Current  string
	PBKDF2   PBKDF2Settings
	Bcrypt   int
	Argon2id Argon2idSettings
}

func DefaultConfig() Config {
	return Config{
		Current:  PBKDF2Key,
		PBKDF2:   DefaultPBKDF2Settings(),
		Argon2id: DefaultArgon2idSettings(),
	}
}

// NewRegistryFromConfig registers every built-in strategy.
func NewRegistryFromConfig(cfg Config) (*Registry, error) {
	pbkdf2, err := NewPBKDF2Strategy(cfg.PBKDF2)
	if err != nil {
		return nil, err
	}
	bcrypt, err := NewBcryptStrategy(cfg.Bcrypt)
	if err != nil {
		return nil, err
	}
	argon, err := NewArgon2idStrategy(cfg.Argon2id)
	if err != nil {
		return nil, err
	}
	current := cfg.Current
	if current == "" {
		current = PBKDF2Key
	}
	return NewRegistry(current, pbkdf2, bcrypt, argon, Base64Strategy{})
}
