// Пакет config — загрузка и валидация конфигурации Share Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища записей бандлов.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Config содержит все параметры конфигурации Share Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---
	// Большие загрузки идут десятки минут, поэтому дефолты щедрые.

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown: равен таймаутам записи,
	// чтобы начатые загрузки успели завершиться
	ShutdownTimeout time.Duration

	// --- Загрузка ---

	// Директория spool и локального бэкенда
	UploadDir string
	// Максимальный размер одного файла в байтах
	MaxFileSize int64
	// Количество параллельных загрузок в бэкенд в рамках одного запроса
	UploadConcurrency int
	// TTL бандла в минутах: по умолчанию и допустимый диапазон
	DefaultExpiryMinutes int
	MinExpiryMinutes     int
	MaxExpiryMinutes     int

	// --- Хранилище записей ---

	// Интервал запуска sweeper
	SweepInterval time.Duration
	// Драйвер: file или postgres
	StoreDriver string
	// Путь к JSON-снимку (драйвер file)
	StorePath string

	// --- PostgreSQL (драйвер postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- S3 (удалённый бэкенд) ---

	// Имя бакета; пустое значение — только локальный бэкенд
	S3Bucket string
	S3Region string
	// Endpoint S3-совместимого хранилища (MinIO и т.п.), пусто — AWS
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	// Префикс ключей объектов
	S3Prefix    string
	S3PathStyle bool
	// Путь health endpoint S3-совместимого хранилища (topologymetrics)
	S3HealthPath string
	// Время жизни presigned URL для redirect
	PresignTTL time.Duration
	// Таймаут одного вызова к удалённому бэкенду
	RemoteTimeout time.Duration

	// --- Кэш ---

	CacheSize int
	CacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthCheckInterval time.Duration
	DephealthGroup         string
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("SM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("SM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SM_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts (по умолчанию 30m) ---

	if cfg.HTTPReadTimeout, err = getEnvDuration("SM_HTTP_READ_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("SM_HTTP_WRITE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("SM_HTTP_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SM_SHUTDOWN_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Загрузка ---

	cfg.UploadDir = getEnvDefault("SM_UPLOAD_DIR", "uploads")

	// SM_MAX_FILE_SIZE — лимит на файл (по умолчанию 500 MB)
	cfg.MaxFileSize, err = getEnvInt64("SM_MAX_FILE_SIZE", 500*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("SM_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("SM_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.UploadConcurrency, err = getEnvInt("SM_UPLOAD_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("SM_UPLOAD_CONCURRENCY: %w", err)
	}
	if cfg.UploadConcurrency < 1 {
		return nil, fmt.Errorf("SM_UPLOAD_CONCURRENCY: значение должно быть >= 1")
	}

	if cfg.MinExpiryMinutes, err = getEnvInt("SM_MIN_EXPIRY_MINUTES", 1); err != nil {
		return nil, fmt.Errorf("SM_MIN_EXPIRY_MINUTES: %w", err)
	}
	if cfg.MaxExpiryMinutes, err = getEnvInt("SM_MAX_EXPIRY_MINUTES", 10080); err != nil {
		return nil, fmt.Errorf("SM_MAX_EXPIRY_MINUTES: %w", err)
	}
	if cfg.DefaultExpiryMinutes, err = getEnvInt("SM_DEFAULT_EXPIRY_MINUTES", 60); err != nil {
		return nil, fmt.Errorf("SM_DEFAULT_EXPIRY_MINUTES: %w", err)
	}
	if cfg.MinExpiryMinutes < 1 || cfg.MaxExpiryMinutes < cfg.MinExpiryMinutes {
		return nil, fmt.Errorf("SM_MIN_EXPIRY_MINUTES/SM_MAX_EXPIRY_MINUTES: некорректный диапазон %d-%d",
			cfg.MinExpiryMinutes, cfg.MaxExpiryMinutes)
	}
	if cfg.DefaultExpiryMinutes < cfg.MinExpiryMinutes || cfg.DefaultExpiryMinutes > cfg.MaxExpiryMinutes {
		return nil, fmt.Errorf("SM_DEFAULT_EXPIRY_MINUTES: значение %d вне диапазона %d-%d",
			cfg.DefaultExpiryMinutes, cfg.MinExpiryMinutes, cfg.MaxExpiryMinutes)
	}

	// --- Хранилище записей ---

	if cfg.SweepInterval, err = getEnvDuration("SM_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, fmt.Errorf("SM_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SM_SWEEP_INTERVAL: значение должно быть положительным")
	}

	cfg.StoreDriver = getEnvDefault("SM_STORE_DRIVER", StoreDriverFile)
	if cfg.StoreDriver != StoreDriverFile && cfg.StoreDriver != StoreDriverPostgres {
		return nil, fmt.Errorf("SM_STORE_DRIVER: недопустимое значение %q, допустимые: file, postgres", cfg.StoreDriver)
	}
	cfg.StorePath = getEnvDefault("SM_STORE_PATH", "db.json")

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("SM_DB_HOST", "localhost")
	if cfg.DBPort, err = getEnvInt("SM_DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("SM_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("SM_DB_NAME", "sharemodule")
	cfg.DBUser = getEnvDefault("SM_DB_USER", "sharemodule")
	cfg.DBPassword = os.Getenv("SM_DB_PASSWORD")
	cfg.DBSSLMode = getEnvDefault("SM_DB_SSL_MODE", "disable")

	// --- S3 ---

	cfg.S3Bucket = os.Getenv("SM_S3_BUCKET")
	cfg.S3Region = getEnvDefault("SM_S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("SM_S3_ENDPOINT")
	cfg.S3AccessKey = os.Getenv("SM_S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("SM_S3_SECRET_KEY")
	cfg.S3Prefix = strings.Trim(getEnvDefault("SM_S3_PREFIX", "cloudshare"), "/")
	if cfg.S3PathStyle, err = getEnvBool("SM_S3_PATH_STYLE", false); err != nil {
		return nil, fmt.Errorf("SM_S3_PATH_STYLE: %w", err)
	}
	cfg.S3HealthPath = getEnvDefault("SM_S3_HEALTH_PATH", "/minio/health/live")
	if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
		return nil, fmt.Errorf("SM_S3_ACCESS_KEY и SM_S3_SECRET_KEY задаются только вместе")
	}
	if cfg.PresignTTL, err = getEnvDuration("SM_PRESIGN_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_PRESIGN_TTL: %w", err)
	}
	if cfg.RemoteTimeout, err = getEnvDuration("SM_REMOTE_TIMEOUT", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_REMOTE_TIMEOUT: %w", err)
	}

	// --- Кэш ---

	if cfg.CacheSize, err = getEnvInt("SM_CACHE_SIZE", 10000); err != nil {
		return nil, fmt.Errorf("SM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("SM_CACHE_SIZE: значение должно быть >= 1")
	}
	if cfg.CacheTTL, err = getEnvDuration("SM_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("SM_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	if cfg.DephealthCheckInterval, err = getEnvDuration("SM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("SM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("SM_DEPHEALTH_GROUP", "share-module")

	return cfg, nil
}

// RemoteEnabled сообщает, настроен ли удалённый бэкенд.
func (c *Config) RemoteEnabled() bool {
	return c.S3Bucket != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для golang-migrate и меток topologymetrics).
func (c *Config) DatabaseURL(scheme string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1m, 30m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
