package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ResponseCache keeps rendered GET responses until they expire or a write
// invalidates them.
type ResponseCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{entries: cache.New(ttl, 2*ttl), ttl: ttl}
}

type snapshot struct {
	status int
	header http.Header
	body   []byte
}

type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheKey orders the query parameters so equivalent filters share an entry.
func cacheKey(r *http.Request) string {
	query := r.URL.Query().Encode()
	if query == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + query
}

// Read answers GET requests from the cache and stores 2xx responses.
// A request sent with "Cache-Control: no-cache" always reaches the handler.
func (rc *ResponseCache) Read() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c.Request)
		if c.GetHeader("Cache-Control") != "no-cache" {
			if v, ok := rc.entries.Get(key); ok {
				snap := v.(snapshot)
				header := c.Writer.Header()
				for name, values := range snap.header {
					header[name] = values
				}
				header.Set("X-Cache", "HIT")
				c.Writer.WriteHeader(snap.status)
				_, _ = c.Writer.Write(snap.body)
				c.Abort()
				return
			}
		}

		tee := &teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tee
		c.Next()

		if status := tee.Status(); status >= 200 && status < 300 {
			rc.entries.Set(key, snapshot{status: status, header: tee.Header().Clone(), body: tee.buf.Bytes()}, rc.ttl)
		}
	}
}

// Invalidate drops every cached response after a successful write, so bed
// availability is never served stale once an assignment has changed it.
func (rc *ResponseCache) Invalidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rc.entries.Flush()
		}
	}
}

// Len reports how many responses are cached.
func (rc *ResponseCache) Len() int {
	return rc.entries.ItemCount()
}
