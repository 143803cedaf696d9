package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Keys are partitioned by the caller's Authorization header so two users
// cannot collide. Only 2xx responses are remembered; anything else releases
// the key so the client may retry. Redis failures fail open.
func Middleware(store *Store, log *slog.Logger, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := r.Header.Get(HeaderKey)
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := store.Key(scope, callerHash(r.Header.Get("Authorization")), idemKey)

			rec, claimed, err := store.Claim(ctx, key)
			if err != nil {
				log.Warn("idempotency claim failed, continuing without", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				if rec.State == StateDone {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set(HeaderReplayed, "true")
					w.WriteHeader(rec.Status)
					_, _ = w.Write(rec.Body)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"request with this Idempotency-Key is already in progress"}`))
				return
			}

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			storeCtx := context.WithoutCancel(ctx)
			if rw.status >= 200 && rw.status < 300 {
				if err := store.Complete(storeCtx, key, rw.status, rw.body.Bytes()); err != nil {
					log.Error("idempotency complete failed", "key", key, "err", err)
				}
				return
			}
			if err := store.Release(storeCtx, key); err != nil {
				log.Error("idempotency release failed", "key", key, "err", err)
			}
		})
	}
}

func callerHash(authorization string) string {
	sum := sha256.Sum256([]byte(authorization))
	return hex.EncodeToString(sum[:8])
}

type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
