package configs

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds process-level settings. Lending policy (loan periods,
// limits, the fine rate) is fixed by role and deliberately not
// configurable.
type Config struct {
	DataDir  string // directory holding the persisted collections
	Storage  string // "flat" or "sqlite"
	AuditLog string // path of the JSON-lines audit trail
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		DataDir:  getEnv("LIBRARY_DATA_DIR", "data"),
		Storage:  getEnv("LIBRARY_STORAGE", "flat"),
		AuditLog: getEnv("LIBRARY_AUDIT_LOG", "audit.log"),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
