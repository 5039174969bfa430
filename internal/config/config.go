package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultAuthority      = "FINTRAC"
	defaultJurisdiction   = "Canada"
	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	defaultFetchTimeout   = 30 * time.Second
	defaultFetchAttempts  = 1
	defaultMaxBodyBytes   = 10 << 20
	defaultSourceDelay    = time.Second
	defaultDiffContext    = 3
	defaultDiffMinChars   = 200
	defaultDomainContext  = "Canadian AML/ATF regulation (PCMLTFA/FINTRAC) for money services businesses"
	defaultLLMProvider    = "openai"
	defaultLLMTimeout     = 120 * time.Second
	defaultLLMMaxTokens   = 1024
	defaultLLMMaxAttempts = 3

	defaultServerPort    = 8095
	defaultServerTimeout = 30 * time.Second

	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute

	defaultRedisAddress = "localhost:6379"
	defaultLockTTL      = 30 * time.Minute
	defaultCron         = "0 6 * * *"
)

// Config is the full regwatch configuration.
type Config struct {
	Debug       bool           `env:"APP_DEBUG"    yaml:"debug"`
	Logging     LoggingConfig  `yaml:"logging"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Server      ServerConfig   `yaml:"server"`
	Monitor     MonitorConfig  `yaml:"monitor"`
	LLM         LLMConfig      `yaml:"llm"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	Sources     []SourceConfig `yaml:"sources"`
	SourcesFile string         `env:"SOURCES_FILE" yaml:"sources_file"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the optional run lock.
type RedisConfig struct {
	Enabled  bool          `env:"REDIS_LOCK_ENABLED" yaml:"enabled"`
	Address  string        `env:"REDIS_ADDRESS"      yaml:"address"`
	Password string        `env:"REDIS_PASSWORD"     yaml:"password"`
	DB       int           `env:"REDIS_DB"           yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"    yaml:"host"`
	Port         int           `env:"SERVER_PORT"    yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// APIKey guards /api/v1 when set.
	APIKey string `env:"REGWATCH_API_KEY" yaml:"api_key"`
}

// MonitorConfig holds fetch, normalization and diff settings for a run.
type MonitorConfig struct {
	Authority      string        `env:"REGWATCH_AUTHORITY"    yaml:"authority"`
	Jurisdiction   string        `env:"REGWATCH_JURISDICTION" yaml:"jurisdiction"`
	UserAgent      string        `env:"REGWATCH_USER_AGENT"   yaml:"user_agent"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	FetchAttempts  int           `yaml:"fetch_attempts"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RespectRobots  bool          `yaml:"respect_robots"`
	SourceDelay    time.Duration `yaml:"source_delay"`
	StripSelectors []string      `yaml:"strip_selectors"`
	DomainContext  string        `yaml:"domain_context"`

	// DiffContext and DiffMinChars are pointers so an explicit 0 survives defaults.
	DiffContext  *int `yaml:"diff_context"`
	DiffMinChars *int `yaml:"diff_min_chars"`
}

// DiffSettings returns the diff context lines and minimum pair length,
// falling back to the defaults when unset.
func (m MonitorConfig) DiffSettings() (contextLines, minChars int) {
	contextLines, minChars = defaultDiffContext, defaultDiffMinChars
	if m.DiffContext != nil {
		contextLines = *m.DiffContext
	}
	if m.DiffMinChars != nil {
		minChars = *m.DiffMinChars
	}
	return contextLines, minChars
}

type LLMConfig struct {
	Provider        string        `env:"LLM_PROVIDER" yaml:"provider"`
	Model           string        `env:"LLM_MODEL"    yaml:"model"`
	APIKey          string        `env:"LLM_API_KEY"  yaml:"api_key"`
	BaseURL         string        `env:"LLM_BASE_URL" yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	MaxAttempts     int           `yaml:"max_attempts"`
	// RequestsPerMinute throttles classification calls; zero disables it.
	RequestsPerMinute int `env:"LLM_REQUESTS_PER_MINUTE" yaml:"requests_per_minute"`
}

type ScheduleConfig struct {
	Enabled bool   `env:"SCHEDULE_ENABLED" yaml:"enabled"`
	Cron    string `env:"SCHEDULE_CRON"    yaml:"cron"`
}

// SourceConfig is one tracked page. An empty Authority inherits monitor.authority.
type SourceConfig struct {
	Label     string `yaml:"label"`
	URL       string `yaml:"url"`
	Category  string `yaml:"category"`
	Language  string `yaml:"language"`
	Authority string `yaml:"authority"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg, err := LoadFileWithDefaults(path, SetDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	checks := []error{
		required("database.host", c.Database.Host),
		required("database.user", c.Database.User),
		required("database.dbname", c.Database.DBName),
		positive("database.port", c.Database.Port),
		required("llm.provider", c.LLM.Provider),
		positive("monitor.fetch_attempts", c.Monitor.FetchAttempts),
	}
	if c.Monitor.DiffContext != nil && *c.Monitor.DiffContext < 0 {
		checks = append(checks, &ValidationError{Field: "monitor.diff_context", Message: "must not be negative"})
	}
	if c.Monitor.DiffMinChars != nil && *c.Monitor.DiffMinChars < 0 {
		checks = append(checks, &ValidationError{Field: "monitor.diff_min_chars", Message: "must not be negative"})
	}
	if len(c.Sources) == 0 && c.SourcesFile == "" {
		checks = append(checks, errors.New("sources: at least one source or sources_file is required"))
	}
	for i, src := range c.Sources {
		checks = append(checks,
			required(fmt.Sprintf("sources[%d].label", i), src.Label),
			required(fmt.Sprintf("sources[%d].url", i), src.URL),
		)
	}
	if c.Schedule.Enabled {
		checks = append(checks, required("schedule.cron", c.Schedule.Cron))
	}
	return errors.Join(checks...)
}

// SetDefaults fills unset fields. Source authorities inherit monitor.authority.
func SetDefaults(cfg *Config) {
	setMonitorDefaults(&cfg.Monitor)
	setLLMDefaults(&cfg.LLM)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Debug {
			cfg.Logging.Level = "debug"
		}
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = defaultLockTTL
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout
	}

	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = defaultCron
	}

	cfg.Monitor.ApplySourceDefaults(cfg.Sources)
}

// ApplySourceDefaults fills empty authority and language fields in place.
func (m MonitorConfig) ApplySourceDefaults(sources []SourceConfig) {
	for i := range sources {
		if sources[i].Authority == "" {
			sources[i].Authority = m.Authority
		}
		if sources[i].Language == "" {
			sources[i].Language = "en"
		}
	}
}

func setMonitorDefaults(m *MonitorConfig) {
	if m.Authority == "" {
		m.Authority = defaultAuthority
	}
	if m.Jurisdiction == "" {
		m.Jurisdiction = defaultJurisdiction
	}
	if m.UserAgent == "" {
		m.UserAgent = defaultUserAgent
	}
	if m.FetchTimeout == 0 {
		m.FetchTimeout = defaultFetchTimeout
	}
	if m.FetchAttempts == 0 {
		m.FetchAttempts = defaultFetchAttempts
	}
	if m.MaxBodyBytes == 0 {
		m.MaxBodyBytes = defaultMaxBodyBytes
	}
	if m.SourceDelay == 0 {
		m.SourceDelay = defaultSourceDelay
	}
	if m.DiffContext == nil {
		m.DiffContext = intPtr(defaultDiffContext)
	}
	if m.DiffMinChars == nil {
		m.DiffMinChars = intPtr(defaultDiffMinChars)
	}
	if m.DomainContext == "" {
		m.DomainContext = defaultDomainContext
	}
}

func setLLMDefaults(l *LLMConfig) {
	if l.Provider == "" {
		l.Provider = defaultLLMProvider
	}
	if l.Timeout == 0 {
		l.Timeout = defaultLLMTimeout
	}
	if l.MaxOutputTokens == 0 {
		l.MaxOutputTokens = defaultLLMMaxTokens
	}
	if l.MaxAttempts == 0 {
		l.MaxAttempts = defaultLLMMaxAttempts
	}
}

func intPtr(n int) *int { return &n }
