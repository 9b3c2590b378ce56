package api

import (
	"time"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// LatestResponse is the body of GET /api/v1/metrics/latest
type LatestResponse struct {
	Seq         uint64         `json:"seq"`
	RequestID   string         `json:"requestId"`
	CompletedAt time.Time      `json:"completedAt"`
	Result      *engine.Result `json:"result"`
}

// VersionResponse is the body of GET /api/v1/version
type VersionResponse struct {
	Version string `json:"version"`
	Runner  string `json:"runner"`
	Uptime  string `json:"uptime"`
}
