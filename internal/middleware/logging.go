package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/logging"
)

// w3cFields is the #Fields directive matching formatW3C.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs-bytes cs(Content-Type) cs(User-Agent)"

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// ServiceName is written once when the logger is created.
	ServiceName string
	// SkipPaths are path prefixes that are never logged.
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig skips event polling, which front ends hit several
// times a second while a job runs.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		ServiceName: "MediaConverter/1.0",
		SkipPaths:   []string{"/api/events"},
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger returns HTTP logging middleware using W3C Extended Log Format
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	if config.ServiceName != "" {
		logging.Info("#Software: %s", config.ServiceName)
		logging.Info("#Fields: %s", w3cFields)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			logging.Info("%s", formatW3C(r, rec, time.Since(start)))
		})
	}
}

// formatW3C renders one access log line. Every client-controlled value goes
// through sanitizeLogField.
func formatW3C(r *http.Request, rec *statusRecorder, duration time.Duration) string {
	now := time.Now().UTC()

	requestBytes := "-"
	if r.ContentLength > 0 {
		requestBytes = strconv.FormatInt(r.ContentLength, 10)
	}

	return strings.Join([]string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		w3cField(getClientIP(r)),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		w3cField(r.URL.RawQuery),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.bytes, 10),
		fmt.Sprint(duration.Milliseconds()),
		requestBytes,
		w3cField(r.Header.Get("Content-Type")),
		w3cField(r.Header.Get("User-Agent")),
	}, " ")
}

// w3cField sanitizes s, uses "-" for empty values and quotes values
// containing spaces or quotes.
func w3cField(s string) string {
	s = sanitizeLogField(s)
	switch {
	case s == "":
		return "-"
	case strings.ContainsAny(s, " \t\""):
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// sanitizeLogField strips characters usable for log injection. Line breaks
// become spaces; NUL, ESC and other control characters except tab are
// dropped.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r < 0x20 && r != '\t':
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
