package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config configuración principal de la aplicación
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Media    MediaConfig
}

// ServerConfig configuración del servidor HTTP
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configuración de PostgreSQL
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig configuración de Redis
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// EngineConfig tunables del motor de flujos
type EngineConfig struct {
	// MaxWalkSteps límite duro de nodos por walk (protección contra grafos desbocados)
	MaxWalkSteps int
	// SyncDelayThreshold delays por debajo de este umbral se esperan en el request
	SyncDelayThreshold time.Duration
	// WaitSweepInterval frecuencia del barrido de waits expirados (expresión cron)
	WaitSweepSchedule string
	// WaitSweepBatch máximo de ejecuciones expiradas por barrido
	WaitSweepBatch int
	// CustomerLockTTL TTL del lock de single-flight por (customer, channel)
	CustomerLockTTL time.Duration
}

// MediaConfig configuración del relay de media hacia S3
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", getEnv("POSTGRES_HOST", "localhost")),
			Port:            getEnv("DB_PORT", getEnv("POSTGRES_PORT", "5432")),
			User:            getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres")),
			Password:        getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres")),
			DBName:          getEnv("DB_NAME", getEnv("POSTGRES_DB", "chatflow")),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 2*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Engine: EngineConfig{
			MaxWalkSteps:       getIntEnv("ENGINE_MAX_WALK_STEPS", 100),
			SyncDelayThreshold: getDurationEnv("ENGINE_SYNC_DELAY_THRESHOLD", 30*time.Second),
			WaitSweepSchedule:  getEnv("ENGINE_WAIT_SWEEP_SCHEDULE", "@every 1m"),
			WaitSweepBatch:     getIntEnv("ENGINE_WAIT_SWEEP_BATCH", 100),
			CustomerLockTTL:    getDurationEnv("ENGINE_CUSTOMER_LOCK_TTL", 60*time.Second),
		},
		Media: MediaConfig{
			Bucket:          getEnv("MEDIA_BUCKET", ""),
			Region:          getEnv("MEDIA_REGION", "us-east-1"),
			Endpoint:        getEnv("MEDIA_ENDPOINT", ""),
			AccessKeyID:     getEnv("MEDIA_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("MEDIA_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Engine.MaxWalkSteps <= 0 {
		return fmt.Errorf("ENGINE_MAX_WALK_STEPS must be positive")
	}
	return nil
}

// GetDSN retorna el DSN de PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr retorna la dirección de Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ============================================================================
// Helpers
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
