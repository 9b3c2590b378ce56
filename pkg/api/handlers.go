package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-graphmetrics/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("error encoding JSON response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// statusFor maps a gateway error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrCanceled), errors.Is(err, gateway.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest reads a compute request, applying the wire defaults to
// omitted fields
func decodeRequest(r *http.Request) (engine.Request, error) {
	req := engine.NewRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, fmt.Errorf("%w: body exceeds %d bytes", errBodyTooLarge, maxErr.Limit)
		}
		return req, fmt.Errorf("%w: %v", validation.ErrInvalidRequest, err)
	}
	return req, nil
}

var errBodyTooLarge = errors.New("request body too large")

// computeContext names the computation after the HTTP request id
func computeContext(ctx context.Context) context.Context {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		ctx = gateway.ContextWithRequestID(ctx, id)
	}
	return ctx
}

// handleCompute runs one computation and answers with its result. The
// computation is cancelled if the client goes away.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.gateway.Compute(computeContext(r.Context()), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			logging.FromContext(r.Context()).Error("computation failed", logging.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.gateway.Latest()
	if !ok {
		s.respondError(w, http.StatusNotFound, "no result has been computed yet")
		return
	}
	s.respondJSON(w, http.StatusOK, LatestResponse{
		Seq:         snap.Seq,
		RequestID:   snap.RequestID,
		CompletedAt: snap.CompletedAt,
		Result:      snap.Result,
	})
}
