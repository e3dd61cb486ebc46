// Package http exposes the REST surface: the embedding proxy, the
// stream extractor, and the share store. Every handler maps errors to
// structured JSON bodies; nothing here panics past gin's recovery.
package http

import (
	"github.com/gridstream/multiview/backend/internal/extract"
	"github.com/gridstream/multiview/backend/internal/fetch"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
	"github.com/gridstream/multiview/backend/internal/infrastructure/monitoring"
	"github.com/gridstream/multiview/backend/internal/share"
)

// Handlers bundles the service dependencies for all HTTP endpoints.
type Handlers struct {
	client    *fetch.Client
	extractor *extract.Extractor
	shares    *share.Store
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	client *fetch.Client,
	extractor *extract.Extractor,
	shares *share.Store,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		client:    client,
		extractor: extractor,
		shares:    shares,
		metrics:   metrics,
		log:       log.Named("api"),
	}
}
