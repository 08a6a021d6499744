package config

// StorageConfig describes where SST blocks live.
type StorageConfig struct {
	Backend         string        `json:"backend"` // "local" or "s3"
	LocalFS         LocalFSConfig `json:"local_fs"`
	S3              S3Config      `json:"s3"`
	CompressionType string        `json:"compression_type"`
}

// LocalFSConfig configures the local filesystem block backend.
type LocalFSConfig struct {
	BasePath string `json:"base_path"`
}

// S3Config configures the S3 block backend.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
}

// AuthConfig configures bearer-JWT authentication for the operator API.
type AuthConfig struct {
	Enabled     bool   `json:"enabled"`
	JWTSecret   string `json:"jwt_secret"`
	JWTIssuer   string `json:"jwt_issuer"`
	TokenExpiry string `json:"token_expiry"`
}

// CompactionConfig tunes the leveled compaction strategy.
type CompactionConfig struct {
	BaseSSTSizeBytes     int64 `json:"base_sst_size_bytes"`    // cap(0) before the 10x-per-level scaling
	L0CompactionTrigger  int   `json:"l0_compaction_trigger"`  // |L0| threshold for score(0) >= 1
	MaxSSTableSizeBytes  int64 `json:"max_sstable_size_bytes"` // bounded output writer rollover size
	ParallelWorkers      int   `json:"parallel_workers"`       // compaction pool size
	SchedulerTickSeconds int   `json:"scheduler_tick_seconds"` // loaded from the environment; the compaction pool does not read it
}

// RepairConfig tunes the anti-entropy repair core.
type RepairConfig struct {
	MaxConcurrentSessions int     `json:"max_concurrent_sessions"` // sessions pool cap
	ConvictThreshold      float64 `json:"convict_threshold"`       // phi convict threshold
	ConvictMultiplier     float64 `json:"convict_multiplier"`      // session fails at phi >= multiplier * threshold
	SnapshotTimeoutSeconds int    `json:"snapshot_timeout_seconds"`
	MerkleTreeMaxDepth    int     `json:"merkle_tree_max_depth"`
	ThrottleKB            int64   `json:"throttle_kb"` // configured_throttle_kB for hint dispatch
}

// OperatorConfig configures the gin-based operator HTTP surface.
type OperatorConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// KafkaConfig for Kafka messaging, shared by Publisher and Consumer.
type KafkaConfig struct {
	Brokers          []string `json:"brokers"`
	ClientID         string   `json:"client_id"`
	GroupID          string   `json:"group_id"`
	SecurityProtocol string   `json:"security_protocol"`
	SASLMechanism    string   `json:"sasl_mechanism"`
	SASLUsername     string   `json:"sasl_username"`
	SASLPassword     string   `json:"sasl_password"`
	EnableTLS        bool     `json:"enable_tls"`
	BatchSize        int      `json:"batch_size"`
	LingerMs         int      `json:"linger_ms"`
	CompressionType  string   `json:"compression_type"`
	RetryMax         int      `json:"retry_max"`
	RetryBackoffMs   int      `json:"retry_backoff_ms"`

	// Consumer-specific fields
	AutoCommitIntervalMs int `json:"auto_commit_interval_ms"`
	FetchTimeoutMs       int `json:"fetch_timeout_ms"`
	MaxRetries           int `json:"max_retries"`
	SessionTimeoutMs     int `json:"session_timeout_ms"`

	// Publisher-specific fields
	MaxRetryBackoffMs int `json:"max_retry_backoff_ms"`
}
