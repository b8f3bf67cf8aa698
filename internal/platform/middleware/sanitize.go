package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize caps any single header value at 8KB.
const maxHeaderValueSize = 8192

var (
	// sqlPatterns is logged, not blocked. Queries here are always
	// parameterized, so a match means probing, not exposure.
	sqlPatterns = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	scriptPatterns = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize screens paths, headers, and query strings for injection attempts
// before any handler runs. Rejections are a 400 with a JSON message.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger is Sanitize with a logger for SQL-probe warnings.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if reason := screenPath(req); reason != "" {
				return rejectRequest(c, reason)
			}
			if reason := screenHeaders(req); reason != "" {
				return rejectRequest(c, reason)
			}
			if reason := screenQuery(c, logger); reason != "" {
				return rejectRequest(c, reason)
			}
			return next(c)
		}
	}
}

func screenPath(req *http.Request) string {
	paths := []string{req.URL.Path}
	if req.URL.RawPath != "" {
		paths = append(paths, req.URL.RawPath)
	}
	for _, p := range paths {
		if containsPathTraversal(p) {
			return "Path traversal detected"
		}
		if containsNullByte(p) {
			return "Null byte injection detected"
		}
	}
	return ""
}

func screenHeaders(req *http.Request) string {
	for name, values := range req.Header {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "Header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "Header injection detected: " + name
			}
		}
	}
	return ""
}

func screenQuery(c echo.Context, logger zerolog.Logger) string {
	for key, values := range c.Request().URL.Query() {
		if containsNullByte(key) {
			return "Null byte injection detected in query parameter"
		}
		if scriptPatterns.MatchString(key) {
			return "Script injection detected in query parameter"
		}
		for _, v := range values {
			if containsNullByte(v) {
				return "Null byte injection detected in query parameter"
			}
			if scriptPatterns.MatchString(v) {
				return "Script injection detected in query parameter"
			}
			if sqlPatterns.MatchString(v) {
				logger.Warn().
					Str("param", key).
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Msg("potential SQL injection pattern detected in query parameter")
			}
		}
	}
	return ""
}

// containsPathTraversal matches dot-dot sequences raw, percent-encoded, and
// double-encoded.
func containsPathTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

func rejectRequest(c echo.Context, reason string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"message": reason,
	})
}

// SanitizeString strips null bytes and control characters other than
// newline, carriage return, and tab, then trims surrounding whitespace.
// Handlers use it on free-text fields before persisting.
func SanitizeString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
