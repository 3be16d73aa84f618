package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerRequestAt      = "X-Request-At"
	headerReplayed       = "Idempotent-Replayed"

	// How long an unfinished request holds its key.
	provisionalLockTTL = 60 * time.Second
	// Allowed client/server clock skew for X-Request-At (in UTC).
	maxClockSkew = 10 * time.Minute
)

// capture tees the response body so it can be stored for replay.
type capture struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (w *capture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capture) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func jsonError(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// Idempotency replays the stored response of a mutating request repeated with
// the same Idempotency-Key by the same owner. It must run after OwnerAuth.
// X-Request-At must be epoch (seconds or ms) OR RFC3339/RFC3339Nano with timezone.
// Server errors (5xx) are not stored, so the client may retry with the same key.
func Idempotency(rdb *redis.Client, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	store := idempStore{rdb: rdb, lock: provisionalLockTTL, ttl: ttl}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			ownerID := OwnerID(c)
			if ownerID == "" {
				return jsonError(c, http.StatusUnauthorized, "missing owner identity")
			}

			idemKey := strings.TrimSpace(req.Header.Get(headerIdempotencyKey))
			switch {
			case idemKey == "":
				return jsonError(c, http.StatusBadRequest, "missing "+headerIdempotencyKey)
			case !validIdempotencyKey(idemKey):
				return jsonError(c, http.StatusBadRequest, "invalid "+headerIdempotencyKey+" format")
			}
			reqAt, err := parseRequestAt(req.Header.Get(headerRequestAt))
			if err == nil {
				err = checkSkew(reqAt, nowUTC(), maxClockSkew)
			}
			if err != nil {
				return jsonError(c, http.StatusBadRequest, err.Error())
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			key := buildKey(req.Method, c.Path(), ownerID, idemKey)
			entry := idempEntry{
				InProgress:  true,
				BodySHA256:  bodyHash(body),
				Key:         idemKey,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   nowUTC(),
			}

			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			claimed, err := store.claim(ctx, key, entry)
			if err != nil {
				log.Error("idempotency store unavailable", zap.String("key", key), zap.Error(err))
				return jsonError(c, http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !claimed {
				return replay(ctx, c, store, key, entry.BodySHA256, log)
			}

			w := &capture{ResponseWriter: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = w
			if err := next(c); err != nil {
				c.Error(err)
			}

			// the request context may already be gone
			bg, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if w.code >= http.StatusInternalServerError {
				if err := store.release(bg, key); err != nil {
					log.Warn("idempotency lock not released", zap.String("key", key), zap.Error(err))
				}
				return nil
			}
			entry.InProgress = false
			entry.Code = w.code
			entry.ContentType = w.Header().Get(echo.HeaderContentType)
			entry.Body = w.buf.Bytes()
			if err := store.finish(bg, key, entry); err != nil {
				log.Warn("idempotency response not stored", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

func replay(ctx context.Context, c echo.Context, store idempStore, key, bhash string, log *zap.Logger) error {
	cur, found, err := store.load(ctx, key)
	if err != nil {
		log.Warn("idempotency entry not loaded", zap.String("key", key), zap.Error(err))
	}
	if found && cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
		return jsonError(c, http.StatusConflict, headerIdempotencyKey+" reused with different body")
	}
	if found && cur.replayable() {
		ct := cur.ContentType
		if ct == "" {
			ct = echo.MIMEApplicationJSON
		}
		c.Response().Header().Set(headerReplayed, "true")
		return c.Blob(cur.Code, ct, cur.Body)
	}
	return jsonError(c, http.StatusConflict, "request is already in progress")
}
