package httpapi

import (
	"time"

	"github.com/go-chi/cors"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Limits applied by every server built with NewMux. Set them before NewMux.
var (
	maxBodyBytes    = defaultMaxBodyBytes
	generateTimeout time.Duration

	// corsOptions is nil when CORS is disabled.
	corsOptions *cors.Options
)

// SetMaxBodyBytes caps JSON request bodies. n <= 0 restores the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

// SetGenerateTimeout bounds each generate call; 0 leaves only the client's
// own deadline.
func SetGenerateTimeout(d time.Duration) {
	generateTimeout = max(d, 0)
}

// SetCORSOptions turns the CORS middleware on or off.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	if !enabled {
		corsOptions = nil
		return
	}
	corsOptions = &cors.Options{
		AllowedOrigins: append([]string(nil), origins...),
		AllowedMethods: append([]string(nil), methods...),
		AllowedHeaders: append([]string(nil), headers...),
		MaxAge:         300,
	}
}
