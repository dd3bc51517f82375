// Pacote config centraliza o carregamento das variáveis de ambiente usadas pela API.
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
)

const (
	StoreArquivo  = "arquivo"
	StorePostgres = "postgres"
)

// Config agrega todos os parâmetros necessários para a API.
type Config struct {
	HTTPAddress    string
	MetricsAddress string
	LogLevel       string
	Environment    string

	StoreDriver  string
	VotosArquivo string
	AddonNombre  string
	FusoHorario  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	AutoMigrate      bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeoEnabled     bool
	GeoBaseURL     string
	GeoTimeout     time.Duration
	GeoCacheTTL    time.Duration
	GeoCachePrefix string

	RateLimitEnabled       bool
	RateLimitMaxActions    int
	RateLimitWindowSeconds int
	RateLimitKeyPrefix     string

	TrustProxy    bool
	CORSOrigins   []string
	ConsultaToken string
	StaticDir     string
}

// Load lê primeiro o .env opcional (ENV_FILE) e depois o ambiente; variáveis já
// definidas no ambiente nunca são sobrescritas pelo arquivo.
func Load() (Config, error) {
	if err := carregarEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddress:            ":" + getEnv("PORT", getEnv("PUERTO", "3000")),
		MetricsAddress:         os.Getenv("METRICS_ADDRESS"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		Environment:            getEnv("NODE_ENV", "desarrollo"),
		StoreDriver:            strings.ToLower(getEnv("STORE_DRIVER", StoreArquivo)),
		VotosArquivo:           getEnv("VOTOS_ARQUIVO", "basedatos_votos.json"),
		AddonNombre:            getEnv("ADDON_NOMBRE", "Better on Bedrock v1.1.3"),
		FusoHorario:            getEnv("FUSO_HORARIO", "America/Santiago"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:           getEnv("POSTGRES_USER", "addon"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "addon"),
		PostgresDB:             getEnv("POSTGRES_DB", "addon_votos"),
		PostgresSSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		AutoMigrate:            getEnvAsBool("DB_AUTO_MIGRATE", true),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		GeoEnabled:             getEnvAsBool("GEO_ENABLED", true),
		GeoBaseURL:             getEnv("GEO_BASE_URL", "https://ipapi.co"),
		GeoTimeout:             getEnvAsDuration("GEO_TIMEOUT", 3*time.Second),
		GeoCacheTTL:            getEnvAsDuration("GEO_CACHE_TTL", 24*time.Hour),
		GeoCachePrefix:         getEnv("GEO_CACHE_PREFIX", "geo"),
		RateLimitEnabled:       getEnvAsBool("ANTIFRAUDE_RATE_LIMIT_ENABLED", false),
		RateLimitMaxActions:    getEnvAsInt("ANTIFRAUDE_RATE_LIMIT_MAX", 10),
		RateLimitWindowSeconds: getEnvAsInt("ANTIFRAUDE_RATE_LIMIT_WINDOW", 60),
		RateLimitKeyPrefix:     getEnv("ANTIFRAUDE_RATE_LIMIT_PREFIX", "ratelimit"),
		TrustProxy:             getEnvAsBool("TRUST_PROXY", false),
		CORSOrigins:            getEnvAsList("CORS_ORIGINS", "https://mikelsx.github.io,http://localhost:3000,http://localhost:5173"),
		ConsultaToken:          os.Getenv("CONSULTA_TOKEN"),
		StaticDir:              os.Getenv("STATIC_DIR"),
	}

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: REDIS_DB invalido: %w", err)
	}
	cfg.RedisDB = dbInt

	switch cfg.StoreDriver {
	case StoreArquivo, StorePostgres:
	default:
		return Config{}, fmt.Errorf("config: STORE_DRIVER desconhecido %q", cfg.StoreDriver)
	}

	if cfg.RateLimitEnabled && cfg.RedisAddr == "" {
		return Config{}, errors.New("config: ANTIFRAUDE_RATE_LIMIT_ENABLED exige REDIS_ADDR")
	}

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	// Mantemos o formato DSN compatível com GORM e ferramentas de migração.
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func carregarEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: lendo %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}

// getEnvAsDuration aceita "500ms", "3s" ou um número inteiro de segundos.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil {
		return time.Duration(s) * time.Second
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	var lista []string
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			lista = append(lista, item)
		}
	}
	return lista
}
