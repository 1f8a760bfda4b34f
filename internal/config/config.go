package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Mapon    MaponConfig
	Enrich   EnrichConfig
	Vehicles VehiclesConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	// URL selects the Postgres store when set; empty runs in-memory.
	URL string
}

type MaponConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

type EnrichConfig struct {
	DefaultLimit int
}

type VehiclesConfig struct {
	// Units maps registration numbers to Mapon unit ids, seeded at startup.
	Units map[string]int64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Mapon: MaponConfig{
			APIURL:  getEnv("MAPON_API_URL", "https://mapon.com/api/v1"),
			APIKey:  getEnv("MAPON_API_KEY", ""),
			Timeout: getDurationEnv("MAPON_TIMEOUT", 10*time.Second),
		},
		Enrich: EnrichConfig{
			DefaultLimit: getIntEnv("ENRICH_DEFAULT_LIMIT", 100),
		},
		Vehicles: VehiclesConfig{
			Units: parseVehicleUnits(getEnv("VEHICLE_UNITS", "NJ-2702:417038,OC-4485:199332")),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// parseVehicleUnits reads "REG:unitID,REG:unitID" pairs.
func parseVehicleUnits(raw string) map[string]int64 {
	units := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			log.Printf("Invalid vehicle unit mapping %q, skipping", pair)
			continue
		}

		unitID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			log.Printf("Invalid unit id in mapping %q, skipping", pair)
			continue
		}

		units[strings.ToUpper(strings.TrimSpace(parts[0]))] = unitID
	}
	return units
}
