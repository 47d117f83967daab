package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"WolverineBrief/internal/domain"
)

const (
	defaultTimezone   = "America/Toronto"
	configPathEnv     = "WOLVERINE_BRIEF_CONFIG"
	envFileEnv        = "ENV_FILE"
	databaseDSNEnv    = "DATABASE_DSN"
	supabaseURLEnv    = "SUPABASE_URL"
	supabaseKeyEnv    = "SUPABASE_SERVICE_KEY"
	brevoAPIKeyEnv    = "BREVO_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	daysBackEnv       = "DAYS_BACK"
	councilNoteEnv    = "COUNCIL_NOTE"
	outputDirEnv      = "OUTPUT_DIR"
	logLevelEnv       = "LOG_LEVEL"
)

// Stage names a pipeline step whose required settings are validated.
type Stage string

const (
	StageCollect    Stage = "collect"
	StageCompose    Stage = "compose"
	StageDistribute Stage = "distribute"
)

// Config holds every setting the pipeline stages need.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Collector     CollectorConfig    `yaml:"collector"`
	Digest        DigestConfig       `yaml:"digest"`
	Distributor   DistributorConfig  `yaml:"distributor"`
	Supabase      SupabaseConfig     `yaml:"supabase"`
	Email         EmailConfig        `yaml:"email"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the Postgres item store.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// CollectorConfig tunes the fetch stage.
type CollectorConfig struct {
	LookbackDays int `yaml:"lookbackDays"`
	Concurrency  int `yaml:"concurrency"`
}

// DigestConfig describes how the digest is rendered and where it is written.
type DigestConfig struct {
	Title        string         `yaml:"title"`
	TemplatePath string         `yaml:"templatePath"`
	OutputDir    string         `yaml:"outputDir"`
	CouncilNote  string         `yaml:"councilNote"`
	FeedLink     string         `yaml:"feedLink"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the digest timezone string to a time.Location.
func (d DigestConfig) Location() *time.Location {
	if d.location != nil {
		return d.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DistributorConfig tunes the delivery stage.
type DistributorConfig struct {
	Subject     string `yaml:"subject"`
	Concurrency int    `yaml:"concurrency"`
}

// SupabaseConfig points at the hosted subscriber table. OrderBy names the
// column used for stable paging; empty leaves the order to the server.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"serviceKey"`
	Table      string `yaml:"table"`
	OrderBy    string `yaml:"orderBy"`
}

// EmailConfig wires the Brevo transactional transport.
type EmailConfig struct {
	APIKey        string  `yaml:"apiKey"`
	BaseURL       string  `yaml:"baseUrl"`
	SenderName    string  `yaml:"senderName"`
	SenderEmail   string  `yaml:"senderEmail"`
	SMSSender     string  `yaml:"smsSender"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
}

// NotificationConfig encapsulates operator channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send operator messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both bot token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SourceConfig describes one open-data endpoint and the strategy used to read it.
type SourceConfig struct {
	ID       string            `yaml:"id"`
	Kind     string            `yaml:"kind"`
	URL      string            `yaml:"url"`
	Category string            `yaml:"category"`
	Geo      GeoFilter         `yaml:"geo"`
	Options  map[string]string `yaml:"options"`
	Timeout  time.Duration     `yaml:"timeout"`
}

// GeoFilter narrows a source to the configured neighbourhood.
type GeoFilter struct {
	Field    string   `yaml:"field"`
	Values   []string `yaml:"values"`
	Prefix   string   `yaml:"prefix"`
	Keywords []string `yaml:"keywords"`
}

// Load reads .env files and the YAML configuration, then applies environment overrides.
func Load() (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, &domain.ConfigurationError{Key: envFileEnv, Reason: err.Error()}
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &domain.ConfigurationError{Key: configPathEnv, Reason: fmt.Sprintf("read %s: %v", path, err)}
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, &domain.ConfigurationError{Key: configPathEnv, Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadEnvFiles loads ENV_FILE when set, otherwise .env; missing files are ignored.
func loadEnvFiles() error {
	path := ".env"
	if v := os.Getenv(envFileEnv); v != "" {
		path = v
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings a stage cannot run without.
func (c Config) Validate(stage Stage) error {
	switch stage {
	case StageCollect:
		if err := requireValue(databaseDSNEnv, c.Database.DSN); err != nil {
			return err
		}
		if len(c.Sources) == 0 {
			return &domain.ConfigurationError{Key: "sources", Reason: "at least one source is required"}
		}
		return validateSources(c.Sources)
	case StageCompose:
		return requireValue(databaseDSNEnv, c.Database.DSN)
	case StageDistribute:
		required := [][2]string{
			{supabaseURLEnv, c.Supabase.URL},
			{supabaseKeyEnv, c.Supabase.ServiceKey},
			{brevoAPIKeyEnv, c.Email.APIKey},
			{"email.senderEmail", c.Email.SenderEmail},
		}
		for _, kv := range required {
			if err := requireValue(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	default:
		return &domain.ConfigurationError{Key: "stage", Reason: fmt.Sprintf("unknown stage %q", stage)}
	}
}

func requireValue(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.ConfigurationError{Key: key, Reason: "required value is missing"}
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		key := fmt.Sprintf("sources[%d]", i)
		if src.ID == "" {
			return &domain.ConfigurationError{Key: key + ".id", Reason: "required value is missing"}
		}
		if _, dup := seen[src.ID]; dup {
			return &domain.ConfigurationError{Key: key + ".id", Reason: fmt.Sprintf("duplicate source id %q", src.ID)}
		}
		seen[src.ID] = struct{}{}
		if src.Kind == "" || src.URL == "" {
			return &domain.ConfigurationError{Key: key, Reason: "kind and url are required"}
		}
		if _, ok := domain.ParseCategory(src.Category); !ok {
			return &domain.ConfigurationError{Key: key + ".category", Reason: fmt.Sprintf("unknown category %q", src.Category)}
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(supabaseURLEnv); v != "" {
		c.Supabase.URL = v
	}
	if v := os.Getenv(supabaseKeyEnv); v != "" {
		c.Supabase.ServiceKey = v
	}
	if v := os.Getenv(brevoAPIKeyEnv); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(councilNoteEnv); v != "" {
		c.Digest.CouncilNote = v
	}
	if v := os.Getenv(outputDirEnv); v != "" {
		c.Digest.OutputDir = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(daysBackEnv); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return &domain.ConfigurationError{Key: daysBackEnv, Reason: fmt.Sprintf("want a positive integer, got %q", v)}
		}
		c.Collector.LookbackDays = days
	}
	return nil
}

func (c *Config) bindTimezone() error {
	tz := c.Digest.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return &domain.ConfigurationError{Key: "digest.timezone", Reason: err.Error()}
	}
	c.Digest.location = loc
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Table != "" {
		base.Database.Table = override.Database.Table
	}

	if override.Collector.LookbackDays > 0 {
		base.Collector.LookbackDays = override.Collector.LookbackDays
	}
	if override.Collector.Concurrency > 0 {
		base.Collector.Concurrency = override.Collector.Concurrency
	}

	if override.Digest.Title != "" {
		base.Digest.Title = override.Digest.Title
	}
	if override.Digest.TemplatePath != "" {
		base.Digest.TemplatePath = override.Digest.TemplatePath
	}
	if override.Digest.OutputDir != "" {
		base.Digest.OutputDir = override.Digest.OutputDir
	}
	if override.Digest.CouncilNote != "" {
		base.Digest.CouncilNote = override.Digest.CouncilNote
	}
	if override.Digest.FeedLink != "" {
		base.Digest.FeedLink = override.Digest.FeedLink
	}
	if override.Digest.Timezone != "" {
		base.Digest.Timezone = override.Digest.Timezone
	}

	if override.Distributor.Subject != "" {
		base.Distributor.Subject = override.Distributor.Subject
	}
	if override.Distributor.Concurrency > 0 {
		base.Distributor.Concurrency = override.Distributor.Concurrency
	}

	if override.Supabase.URL != "" {
		base.Supabase.URL = override.Supabase.URL
	}
	if override.Supabase.ServiceKey != "" {
		base.Supabase.ServiceKey = override.Supabase.ServiceKey
	}
	if override.Supabase.Table != "" {
		base.Supabase.Table = override.Supabase.Table
	}
	if override.Supabase.OrderBy != "" {
		base.Supabase.OrderBy = override.Supabase.OrderBy
	}

	if override.Email.APIKey != "" {
		base.Email.APIKey = override.Email.APIKey
	}
	if override.Email.BaseURL != "" {
		base.Email.BaseURL = override.Email.BaseURL
	}
	if override.Email.SenderName != "" {
		base.Email.SenderName = override.Email.SenderName
	}
	if override.Email.SenderEmail != "" {
		base.Email.SenderEmail = override.Email.SenderEmail
	}
	if override.Email.SMSSender != "" {
		base.Email.SMSSender = override.Email.SMSSender
	}
	if override.Email.RatePerSecond > 0 {
		base.Email.RatePerSecond = override.Email.RatePerSecond
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Table: "raw_items"},
		Collector: CollectorConfig{LookbackDays: 7, Concurrency: 4},
		Digest: DigestConfig{
			Title:     "Weston Wolverine Brief",
			OutputDir: "output",
			FeedLink:  "https://example.org/weston",
			Timezone:  defaultTimezone,
		},
		Distributor: DistributorConfig{Subject: "Your Weston Wolverine Brief", Concurrency: 4},
		Supabase:    SupabaseConfig{Table: "subscribers", OrderBy: "email"},
		Email: EmailConfig{
			BaseURL:       "https://api.brevo.com",
			SenderName:    "Weston Wolverine",
			SenderEmail:   "noreply@example.com",
			SMSSender:     "Wolverine",
			RatePerSecond: 5,
		},
		Sources: []SourceConfig{
			{
				ID:       "tps-mci",
				Kind:     "arcgis",
				URL:      "https://services.arcgis.com/S9th0jAJ7bqgIRjw/ArcGIS/rest/services/Major_Crime_Indicators_Open_Data/FeatureServer/0/query",
				Category: string(domain.CategoryCrime),
				Geo: GeoFilter{
					Field:  "NEIGHBOURHOOD_158",
					Values: []string{"Weston (113)", "Weston-Pelham Park (91)"},
				},
				Timeout: 60 * time.Second,
			},
			{
				ID:       "toronto-permits",
				Kind:     "ckan_csv",
				URL:      "https://ckan0.cf.opendata.inter.prod-toronto.ca/dataset/108c2bd1-6945-46f6-af92-02f5658ee7f7/resource/dfce3b7b-4f17-4a9d-9155-5e390a5ffa97/download/building-permits-active-permits.csv",
				Category: string(domain.CategoryDevelopment),
				Geo:      GeoFilter{Field: "POSTAL", Prefix: "M9N"},
				Options:  map[string]string{"max_rows": "50000"},
				Timeout:  120 * time.Second,
			},
		},
	}
}
