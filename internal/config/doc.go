// Package config provides configuration management for switchboard.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.switchboard/config.yaml and is created
// with defaults on first use. The file structure mirrors the Go structs
// defined in this package.
//
// # Environment Variables
//
// All configuration values can be overridden using environment variables
// with the SWITCHBOARD_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - SWITCHBOARD_ROUTER_FALLBACK_STRATEGY=chain
//   - SWITCHBOARD_ROUTER_TOP_K=5
//   - SWITCHBOARD_MEMORY_BACKEND=redis
//   - SWITCHBOARD_LOGGING_LEVEL=debug
//
// Provider keys additionally accept the vendor variable names GROQ_API_KEY,
// GEMINI_API_KEY (or GOOGLE_API_KEY) and KIMI_API_KEY (or MOONSHOT_API_KEY).
// The prefixed form wins when both are set.
//
// # Configuration Sections
//
//   - Router: thresholds, classifier, fallback strategy, retrieval depth
//   - Local: llama.cpp binary, model and generation limits
//   - Providers: Groq, Gemini and Kimi endpoints, models, timeouts, rate limits
//   - Knowledge: retrieval store directory and embedding model
//   - Memory: conversation history backend (sqlite or redis)
//   - Ingestion: chunking and the scheduled watch directory
//   - Server: HTTP API address, timeouts and bearer token hash
//   - Persona: personality file
//   - Logging: level and rotated log file
//
// # Path Expansion
//
// The package expands ~ to the user's home directory in all path settings.
//
// # Thread Safety
//
// Config instances are not thread-safe. Load once at startup and pass
// values into constructors.
package config
