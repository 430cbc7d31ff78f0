package dsn

import (
	"fmt"
	"os"
)

// FromEnv builds a Postgres DSN from DB_* variables. Returns "" when DB_HOST is unset.
func FromEnv() string {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	pass := os.Getenv("DB_PASS")
	dbname := getEnv("DB_NAME", "filing")
	sslmode := getEnv("DB_SSLMODE", "disable")
	tz := getEnv("DB_TIMEZONE", "Asia/Kolkata")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		host, port, user, pass, dbname, sslmode, tz)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
