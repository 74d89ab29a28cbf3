package handler

import (
	"github.com/rs/zerolog"

	"github.com/kevingruber/journal-gateway/internal/journal"
	"github.com/kevingruber/journal-gateway/internal/sysinfo"
)

// Gateway serves the journal over HTTP: entry streams, unique field
// values, machine metadata, and the browser asset.
type Gateway struct {
	source     journal.Source
	sys        sysinfo.Provider
	browseFile string
	logger     zerolog.Logger
	metrics    *Metrics
}

// New creates a gateway over the given journal source.
func New(source journal.Source, sys sysinfo.Provider, browseFile string, logger zerolog.Logger) (*Gateway, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	return &Gateway{
		source:     source,
		sys:        sys,
		browseFile: browseFile,
		logger:     logger,
		metrics:    metrics,
	}, nil
}
