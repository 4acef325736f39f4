package domain

// Config holds the complete Heron configuration. Every pipeline stage and
// service receives the section it needs explicitly; nothing reads module
// level state.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Data paths and source labeling for the batch pipeline
	Data DataConfig `json:"data"`

	// Churn labeling
	Churn ChurnConfig `json:"churn"`

	// Model training and artifacts
	Model ModelConfig `json:"model"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// DataConfig holds the flat-file locations of the pipeline inputs and
// outputs, plus the source-period label stamped onto ingested rows.
type DataConfig struct {
	// RawPath is the raw transaction ledger (CSV).
	RawPath string `json:"rawPath"`

	// CleanPath receives the cleaned ledger.
	CleanPath string `json:"cleanPath"`

	// FeaturesPath receives the customer feature table.
	FeaturesPath string `json:"featuresPath"`

	// CleaningReportPath receives the per-stage cleaning counts (JSON).
	CleaningReportPath string `json:"cleaningReportPath"`

	// SourcePeriod labels which ledger period is being processed.
	SourcePeriod string `json:"sourcePeriod"`
}

// ChurnConfig holds the labeling threshold.
type ChurnConfig struct {
	// ThresholdDays marks a customer churned when Recency strictly
	// exceeds it.
	ThresholdDays int `json:"thresholdDays"`
}

// ModelConfig holds training settings and artifact locations.
type ModelConfig struct {
	// Dir receives model artifacts (classifier, scaler, report).
	Dir string `json:"dir"`

	// Candidate selects the classifier the serving layer loads:
	// "logistic" or "forest".
	Candidate string `json:"candidate"`

	// TestSize is the held-out fraction for evaluation.
	TestSize float64 `json:"testSize"`

	// Seed fixes the train/test split and forest sampling.
	Seed int64 `json:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns the single-process configuration: SQLite run
// history, in-memory score cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Data: DataConfig{
			RawPath:            "./data/raw/online_retail.csv",
			CleanPath:          "./data/processed/clean_data_final.csv",
			FeaturesPath:       "./data/processed/customer_features_final.csv",
			CleaningReportPath: "./data/processed/cleaning_report.json",
			SourcePeriod:       "Year 2010-2011",
		},
		Churn: ChurnConfig{
			ThresholdDays: 90,
		},
		Model: ModelConfig{
			Dir:       "./models",
			Candidate: "forest",
			TestSize:  0.2,
			Seed:      42,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DistributedConfig returns a configuration for multi-node deployments:
// PostgreSQL run history, Redis score cache, NATS event bus.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}
