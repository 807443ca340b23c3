package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// RequestLogging assigns each request an X-Request-ID (keeping a
// client-supplied one) and logs one line per request.
func RequestLogging(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(common.RequestIDHeaderName)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(common.RequestIDHeaderName, reqID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			logger.Info(r.Context(), "http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 reply.
func Recovery(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error(r.Context(), "handler panic", "path", r.URL.Path, "panic", p)
					writeError(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Identify parses an optional bearer token into the request's identity.
// Requests without an Authorization header stay anonymous; a malformed or
// invalid token is rejected with 401.
func Identify(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Fields(header)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			id, err := auth.ParseToken(parts[1], secretKey)
			if err != nil {
				writeError(w, err.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requester returns the request identity, anonymous when none was set.
func requester(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
