package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dripsheet/dripsheet/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Sheet    SheetConfig    `mapstructure:"sheet"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Google   GoogleConfig   `mapstructure:"google"`
	Email    EmailConfig    `mapstructure:"email"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SheetConfig identifies the spreadsheet tab holding the contact list
type SheetConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	// Tab is the sheet tab name, also used as the read range
	Tab string `mapstructure:"tab"`
	// ValueInputOption is RAW or USER_ENTERED
	ValueInputOption string `mapstructure:"value_input_option"`
}

// CampaignConfig holds the outreach campaign settings
type CampaignConfig struct {
	Subject     string `mapstructure:"subject"`
	TemplateDir string `mapstructure:"template_dir"`
	TemplateExt string `mapstructure:"template_ext"`
	// EmailLimit caps successful sends per run; 0 means no cap
	EmailLimit int `mapstructure:"email_limit"`
	// DateFormat is a Go time layout for the "Approached (Date)" cell
	DateFormat string `mapstructure:"date_format"`
	// StrictState skips rows with a malformed "Emails Sent" cell instead of
	// treating them as step 0
	StrictState bool          `mapstructure:"strict_state"`
	Columns     model.Columns `mapstructure:"columns"`
}

// GoogleConfig holds the credentials used for Sheets and Gmail
type GoogleConfig struct {
	// CredentialsFile is a service account key or an OAuth client
	// ("installed" app) JSON file
	CredentialsFile string `mapstructure:"credentials_file"`
	// CredentialsJSON is the same content inline; takes precedence over the file
	CredentialsJSON string `mapstructure:"credentials_json"`
	// TokenFile stores the user token for installed-app credentials
	TokenFile string `mapstructure:"token_file"`
	// ClientID, ClientSecret and RefreshToken select refresh-token auth
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RefreshToken string   `mapstructure:"refresh_token"`
	Scopes       []string `mapstructure:"scopes"`
	// Subject is the mailbox a service account impersonates via domain-wide delegation
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HasRefreshToken reports whether refresh-token credentials are configured
func (c GoogleConfig) HasRefreshToken() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the email provider to use: "gmail", "resend" or "noop"
	Provider      string       `mapstructure:"provider"`
	SenderAddress string       `mapstructure:"sender_address"`
	SenderName    string       `mapstructure:"sender_name"`
	ReplyTo       string       `mapstructure:"reply_to"`
	Resend        ResendConfig `mapstructure:"resend"`
}

// ResendConfig holds Resend API configuration
type ResendConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds PostgreSQL configuration for the send journal
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the run lock
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from .env, the config file and environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path; an empty path searches
// the default locations.
func LoadFrom(path string) (*Config, error) {
	// A missing .env is fine; anything else (bad syntax) is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dripsheet")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DRIPSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv accepts the unprefixed variable names older .env files use.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("sheet.spreadsheet_id", "DRIPSHEET_SHEET_SPREADSHEET_ID", "SPREADSHEET_ID")
	_ = v.BindEnv("campaign.email_limit", "DRIPSHEET_CAMPAIGN_EMAIL_LIMIT", "EMAIL_LIMIT")
	_ = v.BindEnv("google.scopes", "DRIPSHEET_GOOGLE_SCOPES", "SCOPES")
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Sheet defaults
	v.SetDefault("sheet.spreadsheet_id", "")
	v.SetDefault("sheet.tab", "Sheet1")
	v.SetDefault("sheet.value_input_option", "USER_ENTERED")

	// Campaign defaults
	cols := model.DefaultColumns()
	v.SetDefault("campaign.subject", "")
	v.SetDefault("campaign.template_dir", "templates")
	v.SetDefault("campaign.template_ext", ".txt")
	v.SetDefault("campaign.email_limit", 0)
	v.SetDefault("campaign.date_format", "2006-01-02")
	v.SetDefault("campaign.strict_state", false)
	v.SetDefault("campaign.columns.contact_email", cols.ContactEmail)
	v.SetDefault("campaign.columns.contact_name", cols.ContactName)
	v.SetDefault("campaign.columns.language", cols.Language)
	v.SetDefault("campaign.columns.emails_sent", cols.EmailsSent)
	v.SetDefault("campaign.columns.approached_date", cols.ApproachedDate)

	// Google defaults
	v.SetDefault("google.credentials_file", "credentials.json")
	v.SetDefault("google.credentials_json", "")
	v.SetDefault("google.token_file", "token.json")
	v.SetDefault("google.scopes", []string{
		"https://www.googleapis.com/auth/spreadsheets",
		"https://www.googleapis.com/auth/gmail.send",
	})
	v.SetDefault("google.timeout", "30s")

	// Email defaults
	v.SetDefault("email.provider", "gmail")
	v.SetDefault("email.sender_address", "")
	v.SetDefault("email.sender_name", "")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "dripsheet")
	v.SetDefault("database.user", "dripsheet")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 4)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30m")
}

// Validate checks the settings a campaign run cannot do without
func (c *Config) Validate() error {
	var problems []string
	if c.Sheet.SpreadsheetID == "" {
		problems = append(problems, "sheet.spreadsheet_id is required")
	}
	switch strings.ToUpper(c.Sheet.ValueInputOption) {
	case "RAW", "USER_ENTERED":
	default:
		problems = append(problems, fmt.Sprintf("sheet.value_input_option must be RAW or USER_ENTERED, got %q", c.Sheet.ValueInputOption))
	}
	if c.Campaign.Subject == "" {
		problems = append(problems, "campaign.subject is required")
	}
	if c.Campaign.EmailLimit < 0 {
		problems = append(problems, "campaign.email_limit must not be negative")
	}
	switch c.Email.Provider {
	case "gmail", "resend":
		if c.Email.SenderAddress == "" {
			problems = append(problems, "email.sender_address is required")
		}
	case "noop":
	default:
		problems = append(problems, fmt.Sprintf("unknown email.provider %q", c.Email.Provider))
	}
	if c.Email.Provider == "resend" && c.Email.Resend.APIKey == "" {
		problems = append(problems, "email.resend.api_key is required for the resend provider")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
