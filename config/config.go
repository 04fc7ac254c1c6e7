// Package config resolves the settings for a test run: where the deployment under test lives, which
// API keys to use, and the static test credentials. Settings are read once, with priority
// defaults → config file → environment variables → command-line flags, and are read-only afterward.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/framework"
)

// Keys used in viper, config files and flag bindings.
const (
	KeyBaseURL             = "base_url"
	KeyPlatformURL         = "platform_url"
	KeyAuthURL             = "auth_url"
	KeySignupURL           = "signup_url"
	KeyAnonKey             = "anon_key"
	KeyServiceKey          = "service_key"
	KeyConfirmedUserEmail  = "confirmed_user_email"
	KeyEphemeralDomain     = "ephemeral_email_domain"
	KeyEphemeralPassword   = "ephemeral_password"
	KeyValidEmail          = "credentials.valid_email"
	KeyValidPassword       = "credentials.valid_password"
	KeyInvalidEmail        = "credentials.invalid_email"
	KeyInvalidPassword     = "credentials.invalid_password"
	KeyRequestTimeout      = "request_timeout"
	KeyAwaitServiceTimeout = "await_service_timeout"
	KeyRequireServiceKey   = "require_service_key"
	KeyAuthContract        = "auth_contract"
)

// Values of auth_contract.
const (
	AuthContractCurrent = "current"
	AuthContractLegacy  = "legacy"
	AuthContractBoth    = "both"
)

// Capability names derived from the configuration.
const (
	CapabilityWebhook         = "webhook"
	CapabilityAuth            = "auth"
	CapabilityLogin           = "login"
	CapabilityAdmin           = "admin"
	CapabilitySignup          = "signup"
	CapabilityDuplicateSignup = "duplicate-signup"
	CapabilityCurrentContract = "auth-current-contract"
	CapabilityLegacyContract  = "auth-legacy-contract"
)

// AllCapabilities lists every capability a configuration can provide.
var AllCapabilities = []string{
	CapabilityWebhook,
	CapabilityAuth,
	CapabilityLogin,
	CapabilityAdmin,
	CapabilitySignup,
	CapabilityDuplicateSignup,
	CapabilityCurrentContract,
	CapabilityLegacyContract,
}

const authPathSuffix = "/auth/v1"

// DefaultEphemeralEmailDomain is the domain of generated user e-mails. Some auth platforms reject
// reserved domains such as example.com.
const DefaultEphemeralEmailDomain = "gmail.com"

// ErrServiceKeyRequired is returned by Validate when require_service_key is set but no service
// key was provided.
var ErrServiceKeyRequired = errors.New("service key is required but SUPABASE_SERVICE_ROLE_KEY is not set")

var envBindings = map[string]string{
	KeyBaseURL:             "API_BASE_URL",
	KeyPlatformURL:         "SUPABASE_URL",
	KeyAuthURL:             "SUPABASE_AUTH_URL",
	KeySignupURL:           "SIGNUP_URL",
	KeyAnonKey:             "SUPABASE_ANON_KEY",
	KeyServiceKey:          "SUPABASE_SERVICE_ROLE_KEY",
	KeyConfirmedUserEmail:  "CONFIRMED_USER_EMAIL",
	KeyEphemeralDomain:     "EPHEMERAL_EMAIL_DOMAIN",
	KeyEphemeralPassword:   "EPHEMERAL_PASSWORD",
	KeyValidEmail:          "TEST_VALID_EMAIL",
	KeyValidPassword:       "TEST_VALID_PASSWORD",
	KeyInvalidEmail:        "TEST_INVALID_EMAIL",
	KeyInvalidPassword:     "TEST_INVALID_PASSWORD",
	KeyRequestTimeout:      "REQUEST_TIMEOUT",
	KeyAwaitServiceTimeout: "AWAIT_SERVICE_TIMEOUT",
	KeyRequireServiceKey:   "REQUIRE_SERVICE_KEY",
	KeyAuthContract:        "AUTH_CONTRACT",
}

// Credentials are the static login credentials used by the auth tests.
type Credentials struct {
	ValidEmail      string
	ValidPassword   string
	InvalidEmail    string
	InvalidPassword string
}

// Config is the resolved configuration for a run.
type Config struct {
	// BaseURL is the webhook endpoint of the backend.
	BaseURL     string
	PlatformURL string
	// AuthURL is the auth API root, for instance https://xyz.supabase.co/auth/v1.
	AuthURL   string
	SignupURL string

	AnonKey    string
	ServiceKey ldvalue.OptionalString

	// ConfirmedUserEmail is an address that is known to be registered already.
	ConfirmedUserEmail string

	EphemeralEmailDomain string
	EphemeralPassword    string

	Credentials Credentials

	RequestTimeout      time.Duration
	AwaitServiceTimeout time.Duration
	RequireServiceKey   bool

	// AuthContract says which auth error contract the deployment implements: current, legacy or
	// both. The suite for a contract that is not selected is skipped.
	AuthContract string
}

// NewViper returns a viper instance with defaults and environment bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyInvalidEmail, "invalid@example.com")
	v.SetDefault(KeyInvalidPassword, "wrongpassword")
	v.SetDefault(KeyEphemeralDomain, DefaultEphemeralEmailDomain)
	v.SetDefault(KeyEphemeralPassword, "Contract#Test1234")
	v.SetDefault(KeyRequestTimeout, "10s")
	v.SetDefault(KeyAwaitServiceTimeout, "10s")
	v.SetDefault(KeyRequireServiceKey, false)
	v.SetDefault(KeyAuthContract, AuthContractBoth)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads the configuration. If configFile is not empty it is read first; its format is
// taken from the file extension (toml, yaml, json).
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		BaseURL:              strings.TrimSpace(v.GetString(KeyBaseURL)),
		PlatformURL:          strings.TrimRight(strings.TrimSpace(v.GetString(KeyPlatformURL)), "/"),
		AuthURL:              strings.TrimRight(strings.TrimSpace(v.GetString(KeyAuthURL)), "/"),
		SignupURL:            strings.TrimSpace(v.GetString(KeySignupURL)),
		AnonKey:              v.GetString(KeyAnonKey),
		ConfirmedUserEmail:   v.GetString(KeyConfirmedUserEmail),
		EphemeralEmailDomain: v.GetString(KeyEphemeralDomain),
		EphemeralPassword:    v.GetString(KeyEphemeralPassword),
		Credentials: Credentials{
			ValidEmail:      v.GetString(KeyValidEmail),
			ValidPassword:   v.GetString(KeyValidPassword),
			InvalidEmail:    v.GetString(KeyInvalidEmail),
			InvalidPassword: v.GetString(KeyInvalidPassword),
		},
		RequireServiceKey: v.GetBool(KeyRequireServiceKey),
		AuthContract:      strings.ToLower(strings.TrimSpace(v.GetString(KeyAuthContract))),
	}
	if key := v.GetString(KeyServiceKey); key != "" {
		cfg.ServiceKey = ldvalue.NewOptionalString(key)
	}
	if cfg.AuthContract == "" {
		cfg.AuthContract = AuthContractBoth
	}
	if cfg.AuthURL == "" && cfg.PlatformURL != "" {
		cfg.AuthURL = cfg.PlatformURL + authPathSuffix
	}

	var err error
	if cfg.RequestTimeout, err = duration(v, KeyRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.AwaitServiceTimeout, err = duration(v, KeyAwaitServiceTimeout); err != nil {
		return nil, err
	}

	for key, value := range map[string]string{
		KeyBaseURL:     cfg.BaseURL,
		KeyPlatformURL: cfg.PlatformURL,
		KeyAuthURL:     cfg.AuthURL,
		KeySignupURL:   cfg.SignupURL,
	} {
		if err := checkURL(key, value); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants that cannot be expressed by defaults. Missing keys are tolerated
// unless the configuration explicitly asks for them, so that the subset of tests that can run
// still runs.
func (c *Config) Validate() error {
	if c.RequireServiceKey && !c.ServiceKey.IsDefined() {
		return ErrServiceKeyRequired
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%s must not be negative, got %s", KeyRequestTimeout, c.RequestTimeout)
	}
	if c.AwaitServiceTimeout < 0 {
		return fmt.Errorf("%s must not be negative, got %s", KeyAwaitServiceTimeout, c.AwaitServiceTimeout)
	}
	switch c.AuthContract {
	case "", AuthContractCurrent, AuthContractLegacy, AuthContractBoth:
	default:
		return fmt.Errorf("%s must be one of %s, %s or %s, got %q",
			KeyAuthContract, AuthContractCurrent, AuthContractLegacy, AuthContractBoth, c.AuthContract)
	}
	return nil
}

// Capabilities reports which groups of tests this configuration can support.
func (c *Config) Capabilities() framework.Capabilities {
	var caps framework.Capabilities
	if c.BaseURL != "" {
		caps = append(caps, CapabilityWebhook)
	}
	auth := c.AuthURL != "" && c.AnonKey != ""
	if auth {
		caps = append(caps, CapabilityAuth)
		if c.Credentials.ValidEmail != "" && c.Credentials.ValidPassword != "" {
			caps = append(caps, CapabilityLogin)
		}
		contract := c.authContract()
		if contract != AuthContractLegacy {
			caps = append(caps, CapabilityCurrentContract)
		}
		if contract == AuthContractLegacy || contract == AuthContractBoth {
			caps = append(caps, CapabilityLegacyContract)
		}
	}
	if c.AuthURL != "" && c.ServiceKey.IsDefined() {
		caps = append(caps, CapabilityAdmin)
	}
	if c.SignupURL != "" && c.AnonKey != "" {
		caps = append(caps, CapabilitySignup)
		if c.ConfirmedUserEmail != "" {
			caps = append(caps, CapabilityDuplicateSignup)
		}
	}
	return caps
}

// An unset auth contract means both, as it does when the configuration is loaded.
func (c *Config) authContract() string {
	if c.AuthContract == "" {
		return AuthContractBoth
	}
	return c.AuthContract
}

// Endpoints returns the distinct URLs that the run will talk to, for the startup reachability check.
func (c *Config) Endpoints() []string {
	var ret []string
	seen := make(map[string]bool)
	for _, u := range []string{c.BaseURL, c.AuthURL, c.SignupURL} {
		if u != "" && !seen[u] {
			seen[u] = true
			ret = append(ret, u)
		}
	}
	return ret
}

type tomlCredentials struct {
	ValidEmail      string `toml:"valid_email"`
	ValidPassword   string `toml:"valid_password"`
	InvalidEmail    string `toml:"invalid_email"`
	InvalidPassword string `toml:"invalid_password"`
}

type tomlConfig struct {
	BaseURL              string          `toml:"base_url"`
	PlatformURL          string          `toml:"platform_url"`
	AuthURL              string          `toml:"auth_url"`
	SignupURL            string          `toml:"signup_url"`
	AnonKey              string          `toml:"anon_key"`
	ServiceKey           string          `toml:"service_key"`
	ConfirmedUserEmail   string          `toml:"confirmed_user_email"`
	EphemeralEmailDomain string          `toml:"ephemeral_email_domain"`
	EphemeralPassword    string          `toml:"ephemeral_password"`
	RequestTimeout       string          `toml:"request_timeout"`
	AwaitServiceTimeout  string          `toml:"await_service_timeout"`
	RequireServiceKey    bool            `toml:"require_service_key"`
	AuthContract         string          `toml:"auth_contract"`
	Credentials          tomlCredentials `toml:"credentials"`
}

// ToTOML renders the configuration with secrets redacted.
func (c *Config) ToTOML() (string, error) {
	view := tomlConfig{
		BaseURL:              c.BaseURL,
		PlatformURL:          c.PlatformURL,
		AuthURL:              c.AuthURL,
		SignupURL:            c.SignupURL,
		AnonKey:              redact(c.AnonKey),
		ServiceKey:           redact(c.ServiceKey.StringValue()),
		ConfirmedUserEmail:   c.ConfirmedUserEmail,
		EphemeralEmailDomain: c.EphemeralEmailDomain,
		EphemeralPassword:    redact(c.EphemeralPassword),
		RequestTimeout:       c.RequestTimeout.String(),
		AwaitServiceTimeout:  c.AwaitServiceTimeout.String(),
		RequireServiceKey:    c.RequireServiceKey,
		AuthContract:         c.AuthContract,
		Credentials: tomlCredentials{
			ValidEmail:      c.Credentials.ValidEmail,
			ValidPassword:   redact(c.Credentials.ValidPassword),
			InvalidEmail:    c.Credentials.InvalidEmail,
			InvalidPassword: redact(c.Credentials.InvalidPassword),
		},
	}
	data, err := toml.Marshal(view)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("<redacted, %d chars>", len(secret))
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	switch value := v.Get(key).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return value, nil
	case string:
		if value == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %q is not a duration", key, value)
		}
		return d, nil
	default:
		d := v.GetDuration(key)
		return d, nil
	}
}

func checkURL(key, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid value for %s: %q must be an http or https URL", key, value)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid value for %s: %q has no host", key, value)
	}
	return nil
}
