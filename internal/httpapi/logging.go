package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var zlog *zerolog.Logger

// SetLogger installs the logger used for request outcomes. Without one the
// global zerolog logger is used.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// LogLevel is the verbosity of request outcome logs. A request can raise or
// lower it with ?log= or the X-Log-Level header.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

var levelNames = map[string]LogLevel{
	"":      LevelOff,
	"off":   LevelOff,
	"error": LevelError,
	"info":  LevelInfo,
	"debug": LevelDebug,
}

// parseLevel maps unknown names to LevelInfo.
func parseLevel(s string) LogLevel {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return LevelInfo
}

var defaultLogLevel = parseLevel(os.Getenv("LLMHOST_HTTP_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	switch v := r.URL.Query().Get("log"); v {
	case "":
	case "1":
		return LevelDebug
	default:
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logOutcome logs how a handler finished. Failures show from LevelError,
// successes from LevelInfo; LevelDebug adds the query and client address.
func logOutcome(r *http.Request, op string, status int, start time.Time, err error) {
	lvl := requestLogLevel(r)
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	l := logger()
	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = l.Info()
	case status < http.StatusInternalServerError:
		ev = l.Warn().Err(err)
	default:
		ev = l.Error().Err(err)
	}
	ev = ev.Str("op", op).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if lvl == LevelDebug {
		ev = ev.Str("query", r.URL.RawQuery).Str("remote", r.RemoteAddr)
	}
	ev.Msg("request done")
}
