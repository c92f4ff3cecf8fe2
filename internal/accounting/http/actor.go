package accountinghttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger/internal/platform/httpx"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// Actor headers set by the gateway in front of the API.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// ActorFromHeaders stores the calling actor in the request context. Requests
// without a valid actor pass through; mutating handlers reject them.
func ActorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderActorID)), 10, 64)
		if err == nil && id > 0 {
			actor := shared.Actor{ID: id, Name: strings.TrimSpace(r.Header.Get(HeaderActorName))}
			r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor returns the actor of the request.
func RequireActor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		return shared.Actor{}, httpx.ErrUnauthorized
	}
	return actor, nil
}

// IDParam parses a positive integer route parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, badRequest("invalid %s %q", name, raw)
	}
	return d, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseDate(name, raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, badRequest("invalid %s %q", name, raw)
	}
	return d, nil
}
