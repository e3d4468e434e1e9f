package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
	DriverSheets   = "sheets"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Chat      ChatConfig        `yaml:"chat"`
	Biography BiographyConfig   `yaml:"biography"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Storage   StorageConfig     `yaml:"storage"`
	Sheets    SheetsConfig      `yaml:"sheets"`
	Notify    NotifyConfig      `yaml:"notify"`
	Auth      AuthConfig        `yaml:"auth"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Chat, &c.Biography, &c.RateLimit, &c.Storage, &c.Sheets, &c.Notify, &c.Auth, &c.Metrics,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel    slog.Level    `yaml:"log_level"`
	Env         string        `yaml:"env"`
	Log         LogFileConfig `yaml:"log_file"`
	HTTP        HTTPConfig    `yaml:"http"`
	ServiceName string        `yaml:"service_name"`
	ResumeURL   string        `yaml:"resume_url"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvProduction, EnvTest)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Development reports whether error details may be returned to clients.
func (c *ApplicationConfig) Development() bool {
	return c.Env == EnvDevelopment
}

// LogFileConfig enables rotating file output. An empty Path logs to stdout.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ChatConfig selects the completion provider and the turn parameters.
// An empty APIKey is not an error: chat requests then fail with a
// configuration error.
type ChatConfig struct {
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"api_key"`
	// Model defaults per provider when empty.
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	Stream            bool          `yaml:"stream"`
	StreamMaxTokens   int           `yaml:"stream_max_tokens"`
	StreamTemperature float64       `yaml:"stream_temperature"`
	AnswerMaxTokens   int           `yaml:"answer_max_tokens"`
	AnswerTemperature float64       `yaml:"answer_temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	Persona           string        `yaml:"persona"`
	ResumeURL         string        `yaml:"resume_url"`
}

// Validate validates the chat configuration.
func (c *ChatConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderGemini)),
		validation.Field(&c.StreamMaxTokens, validation.Min(1)),
		validation.Field(&c.AnswerMaxTokens, validation.Min(1)),
		validation.Field(&c.StreamTemperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.AnswerTemperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

// BiographyConfig controls where the context document is read from.
type BiographyConfig struct {
	Paths    []string      `yaml:"paths"`
	TTL      time.Duration `yaml:"ttl"`
	Fallback string        `yaml:"fallback"`
	Watch    bool          `yaml:"watch"`
}

// Validate validates the biography configuration.
func (c *BiographyConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Paths, validation.Required),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("biography: %w", err)
	}
	return nil
}

// PolicyConfig is one (max, window) rate limit.
type PolicyConfig struct {
	Max        int           `yaml:"max"`
	Window     time.Duration `yaml:"window"`
	RetryAfter time.Duration `yaml:"retry_after"`
}

// Validate validates the policy.
func (c *PolicyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Max, validation.Required, validation.Min(1)),
		validation.Field(&c.Window, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RetryAfter, validation.Min(time.Duration(0))),
	)
}

// RedisConfig addresses the shared rate limit store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds the limiter backend and both policies.
type RateLimitConfig struct {
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	Chat    PolicyConfig `yaml:"chat"`
	Note    PolicyConfig `yaml:"note"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
	); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("rate_limit: backend is %q but redis.addr is empty", BackendRedis)
	}
	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("rate_limit.chat: %w", err)
	}
	if err := c.Note.Validate(); err != nil {
		return fmt.Errorf("rate_limit.note: %w", err)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SupabaseConfig addresses the hosted PostgREST endpoint.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
	Table      string `yaml:"table"`
}

// StorageConfig selects the primary note store. A driver whose credentials
// are empty leaves persistence unconfigured instead of failing startup.
type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Supabase SupabaseConfig `yaml:"supabase"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverNone, DriverSQLite, DriverSupabase, DriverSheets)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// SheetsConfig addresses a Google Sheet used as a store or a mirror.
type SheetsConfig struct {
	SheetID         string  `yaml:"sheet_id"`
	CredentialsFile string  `yaml:"credentials_file"`
	RPS             float64 `yaml:"rps"`
}

// Validate validates the sheets configuration.
func (c *SheetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RPS, validation.Min(0.0)),
	)
}

// Configured reports whether a sheet id is set.
func (c *SheetsConfig) Configured() bool {
	return c.SheetID != ""
}

// EmailConfig holds Resend delivery settings.
type EmailConfig struct {
	APIKey string `yaml:"api_key"`
	To     string `yaml:"to"`
	From   string `yaml:"from"`
}

// Configured reports whether notification emails can be sent.
func (c *EmailConfig) Configured() bool {
	return c.APIKey != "" && c.To != ""
}

// NotifyConfig holds the best-effort side tasks run after a note is saved.
type NotifyConfig struct {
	Email        EmailConfig   `yaml:"email"`
	MirrorSheets bool          `yaml:"mirror_sheets"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate validates the notification configuration.
func (c *NotifyConfig) Validate() error {
	if err := validation.ValidateStruct(&c.Email,
		validation.Field(&c.Email.To, validation.When(c.Email.APIKey != "", validation.Required)),
	); err != nil {
		return fmt.Errorf("notify.email: %w", err)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the admin routes.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): the admin routes are not served.
//   - "token": admin routes require a Bearer token; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Env:      EnvProduction,
			Log: LogFileConfig{
				MaxSizeMB:  50,
				MaxBackups: 5,
				MaxAgeDays: 30,
			},
			HTTP: HTTPConfig{
				Port:       3001,
				TrustProxy: true,
			},
			ServiceName: "Anmol Portfolio API",
			ResumeURL:   "/AnmolBaruwal__Resume.pdf",
		},
		Chat: ChatConfig{
			Provider:          ProviderOpenAI,
			Stream:            true,
			StreamMaxTokens:   800,
			StreamTemperature: 0.3,
			AnswerMaxTokens:   500,
			AnswerTemperature: 0.2,
			Timeout:           60 * time.Second,
		},
		Biography: BiographyConfig{
			Paths: []string{"public/context.md", "../public/context.md", "context.md"},
			TTL:   5 * time.Minute,
			Watch: true,
		},
		RateLimit: RateLimitConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Prefix: "portfolio:ratelimit:"},
			Chat:    PolicyConfig{Max: 5, Window: 5 * time.Minute},
			Note:    PolicyConfig{Max: 1, Window: 10 * time.Minute},
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{
				Path: "./notes.db",
			},
			Supabase: SupabaseConfig{
				Table: "notes",
			},
		},
		Sheets: SheetsConfig{
			RPS: 1,
		},
		Notify: NotifyConfig{
			Timeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
