package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"docsearch/internal/analytics"
	"docsearch/internal/index"
	"docsearch/internal/search"
	"docsearch/internal/search/cache"
	"docsearch/pkg/logger"
	"docsearch/pkg/metrics"
	"docsearch/pkg/middleware"
)

// QueryExecutor is the part of the query engine the handler depends on.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, limit int) (*search.Result, error)
}

// EventTracker receives telemetry for served queries.
type EventTracker interface {
	Track(event analytics.SearchEvent)
}

type Handler struct {
	executor       QueryExecutor
	idx            *index.Index
	cache          *cache.QueryCache
	collector      EventTracker
	metrics        *metrics.Metrics
	defaultLimit   int
	maxResults     int
	maxQueryLength int
	logger         *slog.Logger
}

type Options struct {
	Cache          *cache.QueryCache
	Collector      EventTracker
	Metrics        *metrics.Metrics
	DefaultLimit   int
	MaxResults     int
	MaxQueryLength int
}

func New(exec QueryExecutor, idx *index.Index, opts Options) *Handler {
	return &Handler{
		executor:       exec,
		idx:            idx,
		cache:          opts.Cache,
		collector:      opts.Collector,
		metrics:        opts.Metrics,
		defaultLimit:   opts.DefaultLimit,
		maxResults:     opts.MaxResults,
		maxQueryLength: opts.MaxQueryLength,
		logger:         slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if h.maxQueryLength > 0 && len(query) > h.maxQueryLength {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("query must be at most %d bytes", h.maxQueryLength))
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	var result *search.Result
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, func() (*search.Result, error) {
			return h.executor.Execute(ctx, query, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, query, limit)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.recordQuery("error", cacheHit, start, 0)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Matches),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.recordQuery(resultType, cacheHit, start, result.TotalHits)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     result.Terms,
			TotalHits: result.TotalHits,
			Returned:  len(result.Matches),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"terms":     h.idx.Terms(),
		"documents": h.idx.DocCount(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) recordQuery(resultType string, cacheHit bool, start time.Time, totalHits int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(totalHits))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
