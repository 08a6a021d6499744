package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the complete system configuration.
type Config struct {
	Storage    StorageConfig    `json:"storage"`
	Auth       AuthConfig       `json:"auth"`
	Compaction CompactionConfig `json:"compaction"`
	Repair     RepairConfig     `json:"repair"`
	Operator   OperatorConfig   `json:"operator"`
	Kafka      KafkaConfig      `json:"kafka"`
}

// Load loads configuration from environment variables, applying the
// teacher's conventional defaults where spec.md leaves a value open
// (see DESIGN.md's Open Question decisions for base_sst_size/L0 trigger).
func Load() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Backend:         getEnvString("STORAGE_BACKEND", "local"),
			CompressionType: getEnvString("COMPRESSION_TYPE", "snappy"),
			LocalFS: LocalFSConfig{
				BasePath: getEnvString("LOCAL_FS_BASE_PATH", "./data"),
			},
			S3: S3Config{
				Bucket:          getEnvString("S3_BUCKET", ""),
				Region:          getEnvString("S3_REGION", "us-east-1"),
				AccessKeyID:     getEnvString("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnvString("S3_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnvString("S3_ENDPOINT", ""),
			},
		},
		Auth: AuthConfig{
			Enabled:     getEnvBool("AUTH_ENABLED", true),
			JWTSecret:   getEnvString("JWT_SECRET", "your-secret-key"),
			JWTIssuer:   getEnvString("JWT_ISSUER", "ringstore-operator"),
			TokenExpiry: getEnvString("TOKEN_EXPIRY", "24h"),
		},
		Compaction: CompactionConfig{
			BaseSSTSizeBytes:     getEnvInt64("COMPACTION_BASE_SST_SIZE_BYTES", 5*1024*1024),
			L0CompactionTrigger:  getEnvInt("COMPACTION_L0_TRIGGER", 4),
			MaxSSTableSizeBytes:  getEnvInt64("COMPACTION_MAX_SSTABLE_SIZE_BYTES", 64*1024*1024),
			ParallelWorkers:      getEnvInt("COMPACTION_PARALLEL_WORKERS", 4),
			SchedulerTickSeconds: getEnvInt("COMPACTION_SCHEDULER_TICK_SECONDS", 30),
		},
		Repair: RepairConfig{
			MaxConcurrentSessions:  getEnvInt("REPAIR_MAX_CONCURRENT_SESSIONS", 4),
			ConvictThreshold:       getEnvFloat("REPAIR_CONVICT_THRESHOLD", 8.0),
			ConvictMultiplier:      getEnvFloat("REPAIR_CONVICT_MULTIPLIER", 2.0),
			SnapshotTimeoutSeconds: getEnvInt("REPAIR_SNAPSHOT_TIMEOUT_SECONDS", 60),
			MerkleTreeMaxDepth:     getEnvInt("REPAIR_MERKLE_MAX_DEPTH", 15),
			ThrottleKB:             getEnvInt64("REPAIR_HINT_THROTTLE_KB", 0),
		},
		Operator: OperatorConfig{
			Host: getEnvString("OPERATOR_HOST", "0.0.0.0"),
			Port: getEnvInt("OPERATOR_PORT", 8080),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ClientID:         getEnvString("KAFKA_CLIENT_ID", "ringstore"),
			GroupID:          getEnvString("KAFKA_GROUP_ID", "ringstore-events"),
			SecurityProtocol: getEnvString("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
			SASLMechanism:    getEnvString("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:     getEnvString("KAFKA_SASL_USERNAME", ""),
			SASLPassword:     getEnvString("KAFKA_SASL_PASSWORD", ""),
			EnableTLS:        getEnvBool("KAFKA_ENABLE_TLS", false),
			BatchSize:        getEnvInt("KAFKA_BATCH_SIZE", 16384),
			LingerMs:         getEnvInt("KAFKA_LINGER_MS", 5),
			CompressionType:  getEnvString("KAFKA_COMPRESSION_TYPE", "none"),
			RetryMax:         getEnvInt("KAFKA_RETRY_MAX", 3),
			RetryBackoffMs:   getEnvInt("KAFKA_RETRY_BACKOFF_MS", 100),
		},
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return split(value, ",")
	}
	return defaultValue
}

func split(s string, sep string) []string {
	var result []string
	for _, v := range strings.Split(s, sep) {
		if len(v) > 0 {
			result = append(result, v)
		}
	}
	return result
}

// String returns a pretty-printed JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Storage.Backend != "local" && c.Storage.Backend != "s3" {
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}
	if c.Compaction.L0CompactionTrigger <= 0 {
		return fmt.Errorf("invalid l0 compaction trigger: %d", c.Compaction.L0CompactionTrigger)
	}
	if c.Repair.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("invalid max concurrent sessions: %d", c.Repair.MaxConcurrentSessions)
	}
	return nil
}
