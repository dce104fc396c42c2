package config

// ServerConfig holds configuration for the coopsched server.
type ServerConfig struct {
	Addr       string // Listen address (default ":8080")
	LogLevel   string // Log level: debug, info, warn, error
	LogFormat  string // Log format: text, json
	SchedPath  string // Scheduler YAML config path (empty = built-in defaults)
	TracePath  string // CSV trace file written while debug mode is on (empty = none)
	MaxTracked int    // Tasks kept for GET /api/v1/tasks; new ones are refused once this many are unsettled (default 1024)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:       ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
		MaxTracked: 1024,
	}
}
