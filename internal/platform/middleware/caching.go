package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CachePolicy controls the Cache-Control and ETag behavior on read endpoints.
// Responses are always marked private; this service only ever serves PHI to
// an authenticated caller, so shared caches must never hold a copy.
type CachePolicy struct {
	MaxAge    int      // max-age in seconds
	NoStore   bool     // emit no-store instead of max-age
	Vary      []string // headers appended to Vary
	SkipPaths []string // exact paths left untouched
}

// DefaultCachePolicy allows short private revalidation with ETags.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		MaxAge: 300,
		Vary:   []string{"Accept", "Authorization"},
	}
}

// ConditionalGET buffers GET and HEAD responses, tags them with a weak ETag
// and Cache-Control, and answers If-None-Match revalidations with 304.
func ConditionalGET(policy CachePolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if pathSkipped(req.URL.Path, policy.SkipPaths) {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := newCaptureWriter(orig)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = orig
				return err
			}
			res.Writer = orig

			if buf.status >= 400 {
				return buf.replay()
			}

			res.Header().Set("Cache-Control", policy.cacheControl())
			if len(policy.Vary) > 0 {
				res.Header().Set("Vary", strings.Join(policy.Vary, ", "))
			}

			etag := weakETag(buf.body.Bytes())
			res.Header().Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.replay()
		}
	}
}

func (p CachePolicy) cacheControl() string {
	if p.NoStore {
		return "private, no-store"
	}
	return fmt.Sprintf("private, max-age=%d", p.MaxAge)
}

func pathSkipped(path string, skips []string) bool {
	for _, s := range skips {
		if path == s {
			return true
		}
	}
	return false
}

// captureWriter holds the body back so the ETag can be computed before any
// bytes reach the client.
type captureWriter struct {
	dst    http.ResponseWriter
	body   bytes.Buffer
	status int
}

func newCaptureWriter(dst http.ResponseWriter) *captureWriter {
	return &captureWriter{dst: dst, status: http.StatusOK}
}

func (w *captureWriter) Header() http.Header         { return w.dst.Header() }
func (w *captureWriter) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *captureWriter) WriteHeader(code int)        { w.status = code }
func (w *captureWriter) Flush()                      {}

// replay sends the captured status and body to the real writer.
func (w *captureWriter) replay() error {
	w.dst.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.dst.Write(w.body.Bytes())
	return err
}

// weakETag derives a weak validator from the response body.
func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`W/"%x"`, sum[:8])
}

// etagMatch reports whether an If-None-Match header value matches the ETag.
// Handles comma-separated candidates, the "*" wildcard, and weak comparison.
func etagMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == etag || strings.TrimPrefix(cand, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
