package api

import (
	"bytes"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// BEARER AUTH
// =============================================================================

// RequireToken rejects requests whose bearer token does not match token.
// An empty token disables the check.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "not authorized", Code: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// IDEMPOTENCY REPLAY
// =============================================================================
// A POST carrying an Idempotency-Key is executed once. Retries with the same
// key and path get the first successful response back verbatim. Failed
// attempts are forgotten so the client may retry them.

const maxReplayEntries = 1024

type replayEntry struct {
	done        chan struct{}
	status      int
	contentType string
	body        []byte
}

// ReplayCache remembers successful POST responses by Idempotency-Key.
type ReplayCache struct {
	mu      sync.Mutex
	entries map[string]*replayEntry
	order   []string
}

func NewReplayCache() *ReplayCache {
	return &ReplayCache{entries: make(map[string]*replayEntry)}
}

// Middleware applies the cache to POST requests.
func (c *ReplayCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Idempotency-Key")
		if r.Method != http.MethodPost || raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		key, err := uuid.Parse(raw)
		if err != nil {
			writeFailure(w, &ledger.ValidationError{Field: "Idempotency-Key", Reason: "must be a UUID"})
			return
		}

		id := r.URL.Path + " " + key.String()
		e, owner := c.acquire(id)
		if !owner {
			<-e.done
			if e.status != 0 {
				IdempotentReplays.Inc()
				w.Header().Set("Content-Type", e.contentType)
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(e.status)
				w.Write(e.body)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		rec := &captureWriter{ResponseWriter: w}
		defer func() {
			if rec.status >= 200 && rec.status < 300 {
				e.status = rec.status
				e.contentType = rec.Header().Get("Content-Type")
				e.body = rec.buf.Bytes()
			} else {
				c.forget(id)
			}
			close(e.done)
		}()
		next.ServeHTTP(rec, r)
	})
}

func (c *ReplayCache) acquire(id string) (*replayEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e, false
	}
	e := &replayEntry{done: make(chan struct{})}
	c.entries[id] = e
	c.order = append(c.order, id)
	if len(c.order) > maxReplayEntries {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	return e, true
}

func (c *ReplayCache) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}
