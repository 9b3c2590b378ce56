package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dd0wney/cluso-graphmetrics/pkg/auth"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
)

var errForbidden = errors.New("role may not start computations")

// requireAuth validates the bearer token when authentication is enabled.
// With compute set, the token's role must allow starting computations.
func (s *Server) requireAuth(compute bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.validator == nil {
			next(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "Missing authentication (Bearer token required)")
			return
		}

		claims, err := s.validator.ValidateToken(r.Context(), token)
		if err != nil {
			logging.FromContext(r.Context()).Info("token rejected",
				logging.String("validator", s.validator.Name()), logging.Error(err))
			if errors.Is(err, auth.ErrExpiredToken) {
				s.respondError(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			s.respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if compute && !claims.CanCompute() {
			s.respondError(w, http.StatusForbidden, errForbidden.Error())
			return
		}

		next(w, r.WithContext(auth.NewContext(r.Context(), claims)))
	}
}

// computeService adapts the gateway for GraphQL resolvers, applying the same
// role check and request naming as the REST endpoint
type computeService struct {
	server *Server
}

func (c *computeService) Compute(ctx context.Context, req engine.Request) (*engine.Result, error) {
	if c.server.validator != nil {
		claims, ok := auth.FromContext(ctx)
		if !ok || !claims.CanCompute() {
			return nil, errForbidden
		}
	}
	return c.server.gateway.Compute(computeContext(ctx), req)
}

func (c *computeService) Latest() (*snapshot.Snapshot, bool) {
	return c.server.gateway.Latest()
}
