package domain

// DefaultAllowedCharacters is the unique name alphabet applied when a realm
// does not override it.
const DefaultAllowedCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

// UniqueNameSettings restricts the characters of user unique names.
// A nil AllowedCharacters accepts any character.
type UniqueNameSettings struct {
	AllowedCharacters *string `json:"allowed_characters"`
}

func DefaultUniqueNameSettings() UniqueNameSettings {
	allowed := DefaultAllowedCharacters
	return UniqueNameSettings{AllowedCharacters: &allowed}
}

// PasswordSettings is the password policy of a realm.
type PasswordSettings struct {
	RequiredLength         int    `json:"required_length"`
	RequiredUniqueChars    int    `json:"required_unique_chars"`
	RequireNonAlphanumeric bool   `json:"require_non_alphanumeric"`
	RequireLowercase       bool   `json:"require_lowercase"`
	RequireUppercase       bool   `json:"require_uppercase"`
	RequireDigit           bool   `json:"require_digit"`
	HashingStrategy        string `json:"hashing_strategy"`
}

func DefaultPasswordSettings() PasswordSettings {
	return PasswordSettings{
		RequiredLength:         8,
		RequiredUniqueChars:    8,
		RequireNonAlphanumeric: true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireDigit:           true,
		HashingStrategy:        "PBKDF2",
	}
}

// RealmSettings is the policy user and credential operations run under: the
// realm's own settings, or the global configuration in the default realm.
type RealmSettings struct {
	UniqueNameSettings      UniqueNameSettings `json:"unique_name_settings"`
	PasswordSettings        PasswordSettings   `json:"password_settings"`
	RequireUniqueEmail      bool               `json:"require_unique_email"`
	RequireConfirmedAccount bool               `json:"require_confirmed_account"`
}
