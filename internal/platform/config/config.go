package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreDriver selects the Record Store backend.
type StoreDriver string

const (
	DriverMemory   StoreDriver = "memory"
	DriverSQLite   StoreDriver = "sqlite"
	DriverPostgres StoreDriver = "postgres"
)

// Config centraliza la configuración de entorno del proceso.
type Config struct {
	Port string

	StoreDriver StoreDriver
	DBDSN       string
	SQLitePath  string
	// Cada cuánto se buscan cambios de otros procesos en el store
	// compartido. 0 desactiva el sondeo; en memoria no se sondea.
	StorePollInterval time.Duration

	LogLevel  string
	LogFormat string
	AppName   string

	MaxDocumentBytes int64
	MaxImageBytes    int64
	DocumentTTL      time.Duration
	NotificationTTL  time.Duration

	SeedPatients bool
}

// Load lee .env (si existe) y luego las variables de entorno.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup construye Config desde una función de lookup (tests).
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Port:         get("PORT", "8080"),
		StoreDriver:  StoreDriver(strings.ToLower(get("STORE_DRIVER", string(DriverMemory)))),
		DBDSN:        get("DB_DSN", ""),
		SQLitePath:   get("SQLITE_PATH", "data/clinic.db"),
		LogLevel:     get("LOG_LEVEL", "info"),
		LogFormat:    get("LOG_FORMAT", "text"),
		AppName:      get("APP_NAME", "dental-clinic"),
		SeedPatients: parseBool(get("SEED_PATIENTS", "true")),
	}

	var err error
	if cfg.MaxDocumentBytes, err = parseBytes(get("MAX_DOCUMENT_BYTES", "10485760")); err != nil {
		return Config{}, fmt.Errorf("MAX_DOCUMENT_BYTES: %w", err)
	}
	if cfg.MaxImageBytes, err = parseBytes(get("MAX_IMAGE_BYTES", "2097152")); err != nil {
		return Config{}, fmt.Errorf("MAX_IMAGE_BYTES: %w", err)
	}
	if cfg.DocumentTTL, err = time.ParseDuration(get("DOCUMENT_TTL", "12h")); err != nil {
		return Config{}, fmt.Errorf("DOCUMENT_TTL: %w", err)
	}
	if cfg.NotificationTTL, err = time.ParseDuration(get("NOTIFICATION_TTL", "30m")); err != nil {
		return Config{}, fmt.Errorf("NOTIFICATION_TTL: %w", err)
	}
	if cfg.StorePollInterval, err = time.ParseDuration(get("STORE_POLL_INTERVAL", "2s")); err != nil || cfg.StorePollInterval < 0 {
		return Config{}, fmt.Errorf("STORE_POLL_INTERVAL: invalid duration")
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return Config{}, fmt.Errorf("STORE_DRIVER=postgres requires DB_DSN")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// SharedStore indica si otro proceso puede escribir en el mismo store.
func (c Config) SharedStore() bool {
	return c.StoreDriver == DriverSQLite || c.StoreDriver == DriverPostgres
}

// Addr devuelve la dirección de escucha para http.Server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func parseBytes(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
