package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func BoolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

// ExposeErrorDetails adds the raw underlying error text to failure responses.
// Operator/debug mode only.
//
// Set via env:
// - EXPOSE_ERROR_DETAILS=true
func ExposeErrorDetails() bool {
	return BoolFromEnv("EXPOSE_ERROR_DETAILS")
}

// SkipMigrations disables AutoMigrate on server startup.
func SkipMigrations() bool {
	return BoolFromEnv("SKIP_MIGRATIONS")
}

type AuditSinkKind string

const (
	AuditSinkDB     AuditSinkKind = "db"
	AuditSinkPubSub AuditSinkKind = "pubsub"
	AuditSinkNone   AuditSinkKind = "none"
)

// AuditSink selects where audit entries go.
//
// Set via env:
// - AUDIT_SINK=db|pubsub|none (default db)
func AuditSink() AuditSinkKind {
	switch AuditSinkKind(strings.ToLower(strings.TrimSpace(os.Getenv("AUDIT_SINK")))) {
	case AuditSinkPubSub:
		return AuditSinkPubSub
	case AuditSinkNone:
		return AuditSinkNone
	default:
		return AuditSinkDB
	}
}
