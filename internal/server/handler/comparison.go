package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// ResultReader reads the cached output of drivers and funding pollers.
// *service.AlertService satisfies it.
type ResultReader interface {
	LatestResult(ctx context.Context, comparisonID string) (domain.ComparisonResult, error)
	LatestFunding(ctx context.Context, pair string) (domain.FundingRate, error)
}

// QuoteReader reads cached venue quotes. *service.QuoteService satisfies it.
type QuoteReader interface {
	GetQuotes(ctx context.Context, pair string) (map[string]domain.VenueQuote, error)
}

// ComparisonHandler serves the latest comparison results, quotes and
// funding rates.
type ComparisonHandler struct {
	results ResultReader
	quotes  QuoteReader
	logger  *slog.Logger
}

// NewComparisonHandler creates a ComparisonHandler.
func NewComparisonHandler(results ResultReader, quotes QuoteReader, logger *slog.Logger) *ComparisonHandler {
	return &ComparisonHandler{results: results, quotes: quotes, logger: logger}
}

// GetComparison returns the latest result of one comparison.
// GET /api/comparisons/{id}
func (h *ComparisonHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.LatestResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "comparison")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type quotesResponse struct {
	Pair   string                       `json:"pair"`
	Quotes map[string]domain.VenueQuote `json:"quotes"`
}

// GetQuotes returns the cached quote of every venue of a pair. A pair with
// no cached quotes is a 404.
// GET /api/pairs/{pair}/quotes
func (h *ComparisonHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	quotes, err := h.quotes.GetQuotes(r.Context(), pair)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "quotes")
		return
	}
	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, "quotes not found")
		return
	}
	writeJSON(w, http.StatusOK, quotesResponse{Pair: pair, Quotes: quotes})
}

// GetFunding returns the latest funding rate of a pair.
// GET /api/pairs/{pair}/funding
func (h *ComparisonHandler) GetFunding(w http.ResponseWriter, r *http.Request) {
	f, err := h.results.LatestFunding(r.Context(), r.PathValue("pair"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "funding")
		return
	}
	writeJSON(w, http.StatusOK, f)
}
