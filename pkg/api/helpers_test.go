package api

import "github.com/dd0wney/cluso-graphmetrics/pkg/api/middleware"

func corsFor(origins ...string) *middleware.CORSConfig {
	return middleware.NewCORSConfig(origins, false)
}
