package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"psikoadmin/internal/auth"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

type Collector struct {
	db *sql.DB

	mu           sync.RWMutex
	requestStats map[key]stat
	gauges       map[string]func() int
	startedAt    time.Time
}

func NewCollector(db *sql.DB) *Collector {
	return &Collector{
		db:           db,
		requestStats: make(map[key]stat),
		gauges:       make(map[string]func() int),
		startedAt:    time.Now(),
	}
}

// RegisterGauge exposes fn as psikoadmin_<name> on the metrics endpoint.
func (c *Collector) RegisterGauge(name string, fn func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = fn
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type ctxKey struct{}

// requestTags is filled in by inner middleware and read back when the
// request completes.
type requestTags struct {
	mu      sync.Mutex
	subject string
}

// TagPrincipal records the authenticated subject for the access log. Mount it
// after the auth middleware.
func TagPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tags, ok := r.Context().Value(ctxKey{}).(*requestTags); ok {
			if p, ok := auth.CurrentPrincipal(r.Context()); ok {
				tags.mu.Lock()
				tags.subject = p.Subject
				tags.mu.Unlock()
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		tags := &requestTags{}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, tags)))

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		requestID := middleware.GetReqID(r.Context())
		tags.mu.Lock()
		subject := tags.subject
		tags.mu.Unlock()
		if p, ok := auth.CurrentPrincipal(r.Context()); ok && subject == "" {
			subject = p.Subject
		}

		entry := map[string]any{
			"request_id": requestID,
			"subject":    subject,
			"session_id": extractSessionID(r.URL.Path),
			"method":     r.Method,
			"path":       path,
			"status":     rec.status,
			"latency_ms": latencyMS,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		b, _ := json.Marshal(entry)
		log.Printf("%s", string(b))
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	gaugeNames := make([]string, 0, len(c.gauges))
	gaugeFns := make(map[string]func() int, len(c.gauges))
	for name, fn := range c.gauges {
		gaugeNames = append(gaugeNames, name)
		gaugeFns[name] = fn
	}
	startedAt := c.startedAt
	c.mu.RUnlock()
	sort.Strings(gaugeNames)

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# psikoadmin observability metrics\n")
	sb.WriteString("# TYPE psikoadmin_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("psikoadmin_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE psikoadmin_http_requests_total counter\n")
	sb.WriteString("# TYPE psikoadmin_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE psikoadmin_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("psikoadmin_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("psikoadmin_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("psikoadmin_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	for _, name := range gaugeNames {
		sb.WriteString(fmt.Sprintf("# TYPE psikoadmin_%s gauge\n", name))
		sb.WriteString(fmt.Sprintf("psikoadmin_%s %d\n", name, gaugeFns[name]()))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE psikoadmin_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("psikoadmin_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE psikoadmin_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("psikoadmin_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE psikoadmin_db_idle_connections gauge\n")
		sb.WriteString(fmt.Sprintf("psikoadmin_db_idle_connections %d\n", dbs.Idle))
		sb.WriteString("# TYPE psikoadmin_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("psikoadmin_db_wait_count %d\n", dbs.WaitCount))
		sb.WriteString("# TYPE psikoadmin_db_wait_duration_ms counter\n")
		sb.WriteString(fmt.Sprintf("psikoadmin_db_wait_duration_ms %.3f\n", float64(dbs.WaitDuration.Microseconds())/1000.0))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

// normalizedPath collapses numeric and uuid segments so label cardinality
// stays bounded.
func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if isIDSegment(p) {
			parts[i] = "{id}"
		}
	}
	if len(parts) > 4 && parts[1] == "api" && parts[3] == "assets" {
		return strings.Join(parts[:4], "/") + "/*"
	}
	return strings.Join(parts, "/")
}

func isIDSegment(p string) bool {
	if _, err := strconv.ParseInt(p, 10, 64); err == nil {
		return true
	}
	if _, err := uuid.Parse(p); err == nil {
		return true
	}
	return false
}

func extractSessionID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "sessions" && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
