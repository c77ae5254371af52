package env

import (
	"os"
	"strconv"
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// Values from the .env file win over the process environment
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetInt returns a positive integer setting, or def when the value is
// missing, malformed or not positive.
func GetInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(GetEnv(key, "")))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// GetBool reports whether the setting parses as true.
func GetBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(GetEnv(key, "")))
	return err == nil && b
}

// SetupEnvFile loads TEACHERTIME_ENV_FILE or the first .env found from the
// working directory up to the project root. Without a file the process
// environment is used as is, which is how the containers are configured.
func SetupEnvFile() {
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/teachertime or cmd/migrate
		"../../../.env", // Package tests
	}
	if explicit := os.Getenv("TEACHERTIME_ENV_FILE"); explicit != "" {
		envFiles = []string{explicit}
	}

	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err == nil {
			Env = values
			return
		}
	}

	Env = map[string]string{}
	fiberlog.Warn("No .env file found, using the process environment")
}
