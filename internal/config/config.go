package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"courtclub/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Club          ClubConfig          `yaml:"club"`
	Store         StoreConfig         `yaml:"store"`
	Redis         RedisConfig         `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Broker        BrokerConfig        `yaml:"broker"`
	Google        GoogleConfig        `yaml:"google"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`

	generated []string
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ClubConfig struct {
	Name              string            `yaml:"name"`
	Timezone          string            `yaml:"timezone"`
	AccessCode        string            `yaml:"access_code"`
	ReceiptSecret     string            `yaml:"receipt_secret"`
	Rates             models.ClubRates  `yaml:"rates"`
	Slots             []models.TimeSlot `yaml:"slots"`
	News              []models.NewsItem `yaml:"news"`
	RemoteTimeout     time.Duration     `yaml:"remote_timeout"`
	ConfirmationDelay time.Duration     `yaml:"confirmation_delay"`
}

// Location resolves the club time zone, falling back to the process zone.
func (c ClubConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

const (
	BackendMemory   = "memory"
	BackendREST     = "rest"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type StoreConfig struct {
	Backend           string         `yaml:"backend"`
	EnforceUniqueSlot bool           `yaml:"enforce_unique_slot"`
	SeedDemo          bool           `yaml:"seed_demo"`
	REST              RESTConfig     `yaml:"rest"`
	SQLite            SQLiteConfig   `yaml:"sqlite"`
	Postgres          PostgresConfig `yaml:"postgres"`
	Mongo             MongoConfig    `yaml:"mongo"`
}

type RESTConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", p.Host),
		fmt.Sprintf("port=%d", p.Port),
		fmt.Sprintf("user=%s", p.User),
		fmt.Sprintf("dbname=%s", p.DBName),
		fmt.Sprintf("sslmode=%s", p.SSLMode),
	}
	if p.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", p.Password))
	}
	return strings.Join(parts, " ")
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	DraftTTL       time.Duration `yaml:"draft_ttl"`
	ChatRateLimit  int           `yaml:"chat_rate_limit"`
	ChatRateWindow time.Duration `yaml:"chat_rate_window"`
}

type AssistantConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type NotificationsConfig struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	MailerSend MailerSendConfig `yaml:"mailersend"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

type MailerSendConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string          `yaml:"credentials_file"`
	ScheduleSpreadsheetID string          `yaml:"schedule_spreadsheet_id"`
	ScheduleSheetName     string          `yaml:"schedule_sheet_name"`
	SyncRetry             SyncRetryConfig `yaml:"sync_retry"`
}

// SyncRetryConfig controls how failed schedule sheet writes are retried.
type SyncRetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
	Admin     APIAdminConfig     `yaml:"admin"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards the partner gRPC service with API keys.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIAdminConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values from it feed the ${VAR} expansion below.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Club.AccessCode) == "" {
		return errors.New("club access code is required")
	}
	if c.Club.Timezone != "" {
		if _, err := time.LoadLocation(c.Club.Timezone); err != nil {
			return fmt.Errorf("invalid club timezone %q: %w", c.Club.Timezone, err)
		}
	}
	if c.Club.Rates.Member <= 0 || c.Club.Rates.NonMember <= 0 || c.Club.Rates.GuestFee < 0 {
		return errors.New("club rates must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendREST:
		if c.Store.REST.URL == "" {
			return errors.New("store.rest.url is required for the rest backend")
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return errors.New("store.postgres host and dbname are required for the postgres backend")
		}
	case BackendMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Assistant.Enabled && c.Assistant.APIKey == "" {
		return errors.New("assistant.api_key is required when the assistant is enabled")
	}

	return ValidateSlots(c.Club.Slots)
}

// ValidateSlots rejects templates with empty or repeated labels.
func ValidateSlots(slots []models.TimeSlot) error {
	if len(slots) == 0 {
		return errors.New("at least one slot is required")
	}
	labels := make(map[string]bool, len(slots))
	ids := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if strings.TrimSpace(slot.TimeLabel) == "" {
			return fmt.Errorf("slot %q has an empty time label", slot.ID)
		}
		if labels[slot.TimeLabel] {
			return fmt.Errorf("duplicate slot time label: %s", slot.TimeLabel)
		}
		if slot.ID != "" && ids[slot.ID] {
			return fmt.Errorf("duplicate slot id: %s", slot.ID)
		}
		labels[slot.TimeLabel] = true
		ids[slot.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "courtclub"
	}

	if c.Club.Name == "" {
		c.Club.Name = models.DefaultClubName
	}
	if c.Club.Rates == (models.ClubRates{}) {
		c.Club.Rates = models.DefaultRates()
	}
	if len(c.Club.Slots) == 0 {
		c.Club.Slots = models.DefaultSlots()
	}
	for i := range c.Club.Slots {
		if c.Club.Slots[i].ID == "" {
			c.Club.Slots[i].ID = fmt.Sprintf("%d", i+1)
		}
	}
	if c.Club.News == nil {
		c.Club.News = models.DefaultNews()
	}
	if c.Club.RemoteTimeout == 0 {
		c.Club.RemoteTimeout = models.DefaultRemoteTimeout
	}
	if c.Club.ConfirmationDelay == 0 {
		c.Club.ConfirmationDelay = models.DefaultConfirmationDelay
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.REST.Timeout == 0 {
		c.Store.REST.Timeout = 10 * time.Second
	}
	if c.Store.Postgres.Port == 0 {
		c.Store.Postgres.Port = 5432
	}
	if c.Store.Postgres.SSLMode == "" {
		c.Store.Postgres.SSLMode = "disable"
	}
	if c.Store.Mongo.Database == "" {
		c.Store.Mongo.Database = "courtclub"
	}

	if c.Session.DraftTTL == 0 {
		c.Session.DraftTTL = models.DefaultDraftTTL
	}
	if c.Session.ChatRateLimit == 0 {
		c.Session.ChatRateLimit = models.ChatRateLimitMessages
	}
	if c.Session.ChatRateWindow == 0 {
		c.Session.ChatRateWindow = models.ChatRateLimitWindow
	}

	if c.Assistant.Model == "" {
		c.Assistant.Model = "gemini-3-flash-preview"
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = 20 * time.Second
	}

	if c.Notifications.MailerSend.FromName == "" {
		c.Notifications.MailerSend.FromName = c.Club.Name
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "courtclub.events"
	}
	if c.Google.ScheduleSheetName == "" {
		c.Google.ScheduleSheetName = "Reservations"
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Admin.TokenTTL == 0 {
		c.API.Admin.TokenTTL = models.DefaultAdminTokenTTL
	}
	// Секреты не выводятся из access_code: пустые заменяются случайными
	// и живут до рестарта.
	if c.Club.ReceiptSecret == "" {
		c.Club.ReceiptSecret = rand.Text()
		c.generated = append(c.generated, "club.receipt_secret")
	}
	if c.API.Admin.TokenSecret == "" {
		c.API.Admin.TokenSecret = rand.Text()
		c.generated = append(c.generated, "api.admin.token_secret")
	}
}

// GeneratedSecrets names the secret keys that were missing from the file and
// got a random per-process value. Receipts and admin tokens signed with them
// stop verifying after a restart.
func (c *Config) GeneratedSecrets() []string {
	return append([]string(nil), c.generated...)
}
