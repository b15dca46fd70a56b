package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	StorageDriver string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	EventTransport  string
	NATSURL         string
	CompletionTopic string

	ServerPort       int
	SweepInterval    time.Duration
	MaxApplyAttempts int
	EnableSimulator  bool

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
	R2Endpoint        string

	// Seeding содержит таблицу посева для каждой схемы плей-офф.
	Seeding map[models.Layout]models.SeedingTable
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StorageDriver:     getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "playoffs"),
		EventTransport:    getEnv("EVENT_TRANSPORT", "gochannel"),
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		CompletionTopic:   getEnv("COMPLETION_TOPIC", "playoff.match.finalized"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		R2Endpoint:        os.Getenv("R2_ENDPOINT"),
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StorageDriverMongo, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.SweepInterval, err = time.ParseDuration(getEnv("SWEEP_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL environment variable: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}

	cfg.MaxApplyAttempts, err = getInt("MAX_APPLY_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if cfg.MaxApplyAttempts < 1 {
		return nil, fmt.Errorf("MAX_APPLY_ATTEMPTS must be at least 1, got %d", cfg.MaxApplyAttempts)
	}

	cfg.EnableSimulator, err = strconv.ParseBool(getEnv("ENABLE_SIMULATOR", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ENABLE_SIMULATOR environment variable: %w", err)
	}

	cfg.Seeding = map[models.Layout]models.SeedingTable{
		models.LayoutDoubleElimination: DefaultSeedingTable([]string{"A", "B"}, brackets.DoubleEliminationSeeds),
	}
	if path := os.Getenv("SEEDING_TABLE_PATH"); path != "" {
		tables, err := LoadSeedingTables(path)
		if err != nil {
			return nil, err
		}
		for layout, t := range tables {
			cfg.Seeding[layout] = t
		}
	}

	return cfg, nil
}

// seedingFile is the YAML layout of SEEDING_TABLE_PATH:
//
//	double_elimination:
//	  entries:
//	    - {group: A, rank: 1, seed: 1}
type seedingFile map[models.Layout]models.SeedingTable

func LoadSeedingTables(path string) (map[models.Layout]models.SeedingTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeding table %s: %w", path, err)
	}
	return ParseSeedingTables(raw)
}

func ParseSeedingTables(raw []byte) (map[models.Layout]models.SeedingTable, error) {
	var file seedingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seeding table: %w", err)
	}
	for layout, t := range file {
		if _, err := brackets.GeneratorFor(layout); err != nil {
			return nil, fmt.Errorf("seeding table: %w", err)
		}
		if len(t.Entries) == 0 {
			return nil, fmt.Errorf("seeding table for %s has no entries", layout)
		}
	}
	return file, nil
}

// DefaultSeedingTable раскладывает места групп по посевам поочерёдно:
// A1, B1, A2, B2, ... до заполнения seeds позиций.
func DefaultSeedingTable(groups []string, seeds int) models.SeedingTable {
	var t models.SeedingTable
	if len(groups) == 0 {
		return t
	}
	seed := 1
	for rank := 1; seed <= seeds; rank++ {
		for _, g := range groups {
			if seed > seeds {
				break
			}
			t.Entries = append(t.Entries, models.SeedingEntry{Group: g, Rank: rank, Seed: seed})
			seed++
		}
	}
	return t
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}
