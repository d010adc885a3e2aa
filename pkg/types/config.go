package types

// DefaultPath is the process search path handed to the compiler subprocess.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// ProjectConfig represents the top-level factcorpus.yaml configuration.
type ProjectConfig struct {
	Corpus         string          `yaml:"corpus"`
	CompilationDir string          `yaml:"compilationDir"`
	ManifestName   string          `yaml:"manifestName,omitempty"`
	LogPath        string          `yaml:"logPath"`
	CacheDir       string          `yaml:"cacheDir"`
	OutputDir      string          `yaml:"outputDir"`
	BuildLogDir    string          `yaml:"buildLogDir,omitempty"`
	CompilerPath   string          `yaml:"compilerPath"`
	Command        []string        `yaml:"command"`
	Timeout        string          `yaml:"timeout,omitempty"`
	Mode           RunMode         `yaml:"mode,omitempty"`
	OnFailure      FailurePolicy   `yaml:"onFailure,omitempty"`
	Retries        int             `yaml:"retries,omitempty"`
	Retry          RetryConfig     `yaml:"retry,omitempty"`
	MaxLogSize     int64           `yaml:"maxLogSize,omitempty"`
	Schema         string          `yaml:"schema,omitempty"`
	CorpusDB       string          `yaml:"corpusDB,omitempty"`
	Env            EnvConfig       `yaml:"env,omitempty"`
	Breaker        BreakerConfig   `yaml:"breaker,omitempty"`
	JobStore       JobStoreConfig  `yaml:"jobStore,omitempty"`
	Alerts         []AlertConfig   `yaml:"alerts,omitempty"`
	Telemetry      TelemetryConfig `yaml:"telemetry,omitempty"`
}

// EnvConfig names the environment variables through which the compiler
// replacement receives its directories. Nothing else is inherited from the
// orchestrator's own environment.
type EnvConfig struct {
	Path        string            `yaml:"path,omitempty"`
	CacheVar    string            `yaml:"cacheVar,omitempty"`
	OutputVar   string            `yaml:"outputVar,omitempty"`
	CompilerVar string            `yaml:"compilerVar,omitempty"`
	WrapperVar  string            `yaml:"wrapperVar,omitempty"`
	Wrapper     string            `yaml:"wrapper,omitempty"`
	Extra       map[string]string `yaml:"extra,omitempty"`
}

// RetryConfig controls which failed attempts are retried and how long to
// wait between them.
type RetryConfig struct {
	Backoff    string    `yaml:"backoff,omitempty"`
	Multiplier float64   `yaml:"multiplier,omitempty"`
	On         []Outcome `yaml:"on,omitempty"`
}

// BreakerConfig configures the compiler circuit breaker used with onFailure=continue.
type BreakerConfig struct {
	ConsecutiveFailures int `yaml:"consecutiveFailures,omitempty"`
}

// JobStoreConfig selects where BuildJob records are kept.
type JobStoreConfig struct {
	Provider StoreProvider   `yaml:"provider,omitempty"`
	Path     string          `yaml:"path,omitempty"`
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty"`
}

// DynamoDBConfig holds DynamoDB connection settings.
type DynamoDBConfig struct {
	TableName    string `yaml:"tableName"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	CreateTable  bool   `yaml:"createTable,omitempty"`
	RetentionTTL string `yaml:"retentionTtl,omitempty"`
}

// AlertConfig defines an alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type"`
	Path     string    `yaml:"path,omitempty"`
	EventBus string    `yaml:"eventBus,omitempty"`
	Region   string    `yaml:"region,omitempty"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}
