package main

import (
	"os"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
)

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	JWTIssuer   string
	Location    *time.Location
}

func loadConfig(logger *zap.Logger) config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		JWTIssuer:   os.Getenv("AUTH_JWT_ISSUER"),
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}
	zone := getenvDefault("SOA_TIMEZONE", "Asia/Manila")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		logger.Warn("unknown time zone, using UTC", zap.String("zone", zone), zap.Error(err))
		loc = time.UTC
	}
	cfg.Location = loc
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
