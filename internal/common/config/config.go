// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Underwriting UnderwritingConfig      `mapstructure:"underwriting"`
	Audit        AuditConfig             `mapstructure:"audit"`
	AWS          AWSConfig               `mapstructure:"aws"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Metrics      MetricsConfig           `mapstructure:"metrics"`
	Tracing      TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	UseTLS         bool   `mapstructure:"use_tls"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Underwriting Engine ---

type UnderwritingConfig struct {
	ConcurrencyLimit int                `mapstructure:"concurrency_limit"`
	TaskTimeout      int                `mapstructure:"task_timeout"`      // milliseconds
	RunDeadline      int                `mapstructure:"run_deadline"`      // milliseconds, 0 = none
	SimulatedLatency int                `mapstructure:"simulated_latency"` // milliseconds
	Retry            RetryConfig        `mapstructure:"retry"`
	Confidence       map[string]float64 `mapstructure:"confidence"` // keyed by task category
}

// RetryConfig bounds automatic re-dispatch of failed automated tasks.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	Backoff     int `mapstructure:"backoff"` // milliseconds
}

// Audit sink names accepted in AuditConfig.Sinks.
const (
	SinkLog           = "log"
	SinkPostgres      = "postgres"
	SinkElasticsearch = "elasticsearch"
	SinkSNS           = "sns"
	SinkSES           = "ses"
)

type AuditConfig struct {
	Sinks              []string `mapstructure:"sinks"`
	ElasticsearchIndex string   `mapstructure:"elasticsearch_index"`
	SNSTopicARN        string   `mapstructure:"sns_topic_arn"`
	SES                struct {
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}

// HasSink reports whether the named audit sink is enabled.
func (a AuditConfig) HasSink(name string) bool {
	for _, s := range a.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
