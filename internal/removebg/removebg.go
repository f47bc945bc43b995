// Package removebg strips image backgrounds, either through a remove.bg
// compatible HTTP service or locally by keying out a plain backdrop.
package removebg

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	ApiKey    string
	BaseUrl   string
	Timeout   time.Duration
	Tolerance float64
	Sigma     float64
}

// New returns the remote remover when an API key is configured and the local
// one otherwise.
func New(cfg Config) Remover {
	if cfg.ApiKey == "" {
		log.Warn("No background removal API key configured, falling back to local backdrop removal")
		return NewLocalRemover(cfg.Tolerance, cfg.Sigma)
	}
	return NewRemoteRemover(cfg.BaseUrl, cfg.ApiKey, cfg.Timeout)
}
