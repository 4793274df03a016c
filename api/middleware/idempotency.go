package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/walletcore/api/responses"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	pkgredis "github.com/angelmondragon/walletcore/pkg/redis"
)

const (
	// money moving routes keep their replay record for a week
	moneyReplayTTL   = 7 * 24 * time.Hour
	catalogReplayTTL = 24 * time.Hour
	// an in-flight claim outlives any handler but not a crashed instance
	inFlightTTL = 2 * time.Minute
)

type replayRoute struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
}

var replayRoutes = []replayRoute{
	{http.MethodPost, listingAction("/buy"), moneyReplayTTL},
	{http.MethodPost, listingAction("/release"), moneyReplayTTL},
	{http.MethodPost, exactPath("/api/v1/tips"), moneyReplayTTL},
	{http.MethodPost, exactPath("/api/v1/premium"), moneyReplayTTL},
	{http.MethodPost, exactPath("/api/v1/wallet/fund"), moneyReplayTTL},
	{http.MethodPost, pathPrefix("/api/admin/v1/marketplace/listings/"), moneyReplayTTL},
	{http.MethodPost, exactPath("/api/v1/marketplace/listings"), catalogReplayTTL},
	{http.MethodPost, listingAction("/ship"), catalogReplayTTL},
	{http.MethodPost, exactPath("/api/v1/ads/campaigns"), catalogReplayTTL},
}

// replayRecord is what an Idempotency-Key maps to. A record without a status
// marks a request that is still running.
type replayRecord struct {
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (r replayRecord) inFlight() bool { return r.Status == 0 }

// Idempotency claims the Idempotency-Key before the handler runs, so a
// duplicate that arrives mid-flight is rejected instead of executed twice.
// Finished responses below 500 are stored and replayed for matching bodies.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(replayScope(r), clientKey)
			claim := replayRecord{RequestHash: bodyHash(body)}
			claimed, err := store.SetNX(ctx, key, mustJSON(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, store, logg, w, key, claim.RequestHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				// retryable failures release the key instead of being replayed
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}

			done := replayRecord{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: claim.RequestHash,
			}
			if setErr := store.Set(context.WithoutCancel(ctx), key, mustJSON(done), ttl); setErr != nil {
				logError(ctx, logg, "persist idempotency record", setErr)
			}
		})
	}
}

func replayExisting(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, requestHash string) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released its claim between our SETNX and GET
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.inFlight() {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
		return
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// replayScope keeps keys per actor and route so two users cannot collide.
func replayScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func bodyHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func mustJSON(record replayRecord) string {
	// replayRecord has only string and int fields
	out, _ := json.Marshal(record)
	return string(out)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func replayTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range replayRoutes {
		if route.method == method && route.match(pattern) {
			return route.ttl, true
		}
	}
	return 0, false
}

func exactPath(path string) func(string) bool {
	return func(pattern string) bool { return pattern == path }
}

func pathPrefix(prefix string) func(string) bool {
	return func(pattern string) bool { return strings.HasPrefix(pattern, prefix) }
}

// listingAction matches both the chi pattern and the raw path, since chi
// reports the group wildcard inside mounted routers.
func listingAction(action string) func(string) bool {
	const listings = "/api/v1/marketplace/listings/"
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, listings) && strings.HasSuffix(pattern, action) &&
			!strings.Contains(strings.TrimSuffix(strings.TrimPrefix(pattern, listings), action), "/")
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
