package csrf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultFieldName is where the token lives in the session, the
	// submitted form data, and the per-request cache.
	DefaultFieldName = "csrf_token"

	// DefaultTimeLimit is the maximum age of a signed token.
	DefaultTimeLimit = time.Hour

	// NoTimeLimit disables token expiry.
	NoTimeLimit time.Duration = -1
)

// DefaultHeaderNames are the headers scanned for a token, in order, when
// the submitted data carries none.
var DefaultHeaderNames = []string{"X-CSRFToken", "X-CSRF-Token"}

// Config holds the CSRF protection settings for an application.
// Immutable after the engine is constructed and safe to share across
// concurrent requests.
type Config struct {
	// Enabled turns protection on. When false the engine, the gate and
	// all form-level checks are no-ops and no secret is required.
	Enabled bool

	// Secret keys the token signer. Required when Enabled.
	Secret []byte

	// FieldName defaults to DefaultFieldName.
	FieldName string

	// TimeLimit is the maximum signed-token age. Zero selects
	// DefaultTimeLimit; NoTimeLimit disables expiry.
	TimeLimit time.Duration

	// HeaderNames defaults to DefaultHeaderNames. Lookup is
	// case-insensitive, in declared order.
	HeaderNames []string

	// SSLStrict enforces a same-origin referrer on secure requests.
	SSLStrict bool
}

// NewConfig returns an enabled Config with defaults applied.
func NewConfig(secret []byte) Config {
	return Config{
		Enabled:     true,
		Secret:      secret,
		FieldName:   DefaultFieldName,
		TimeLimit:   DefaultTimeLimit,
		HeaderNames: DefaultHeaderNames,
		SSLStrict:   true,
	}
}

// WithSecretString returns a copy of the config with the secret set
// from its string form. Secrets held as strings or string-wrapper types
// normalize through here.
func (c Config) WithSecretString(secret string) Config {
	c.Secret = []byte(secret)
	return c
}

// Validate checks the configuration for misconfiguration that must fail
// at startup rather than per-request.
func (c Config) Validate() error {
	if c.Enabled && len(c.Secret) == 0 {
		return fmt.Errorf("csrf: secret is required when protection is enabled")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.FieldName == "" {
		c.FieldName = DefaultFieldName
	}
	if c.TimeLimit == 0 {
		c.TimeLimit = DefaultTimeLimit
	}
	if len(c.HeaderNames) == 0 {
		c.HeaderNames = DefaultHeaderNames
	}
	return c
}

// maxAge translates the configured time limit for the signer, where
// zero means "no expiry".
func (c Config) maxAge() time.Duration {
	if c.TimeLimit == NoTimeLimit {
		return 0
	}
	return c.TimeLimit
}

// FromEnv builds a Config from environment variables, loading a .env
// file first when one exists:
//
//	CSRF_ENABLED     - "true"/"false", defaults to true
//	CSRF_SECRET      - signing secret, required when enabled
//	CSRF_FIELD_NAME  - defaults to "csrf_token"
//	CSRF_TIME_LIMIT  - token lifetime in seconds, 0 disables expiry
//	CSRF_HEADERS     - comma-separated header names
//	CSRF_SSL_STRICT  - "true"/"false", defaults to true
func FromEnv() (Config, error) {
	// A missing .env file is fine; plain environment variables apply.
	_ = godotenv.Load()

	cfg := NewConfig(nil).WithSecretString(os.Getenv("CSRF_SECRET"))

	if v := os.Getenv("CSRF_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("csrf: invalid CSRF_ENABLED %q: %w", v, err)
		}
		cfg.Enabled = enabled
	}

	if v := os.Getenv("CSRF_FIELD_NAME"); v != "" {
		cfg.FieldName = v
	}

	if v := os.Getenv("CSRF_TIME_LIMIT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return Config{}, fmt.Errorf("csrf: invalid CSRF_TIME_LIMIT %q", v)
		}
		if secs == 0 {
			cfg.TimeLimit = NoTimeLimit
		} else {
			cfg.TimeLimit = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("CSRF_HEADERS"); v != "" {
		var headers []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				headers = append(headers, name)
			}
		}
		cfg.HeaderNames = headers
	}

	if v := os.Getenv("CSRF_SSL_STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("csrf: invalid CSRF_SSL_STRICT %q: %w", v, err)
		}
		cfg.SSLStrict = strict
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
