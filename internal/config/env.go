package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads path (typically ".env") into the process environment if
// present, without overriding variables already set. A missing file is not
// an error: most deployments rely on real environment variables instead.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
