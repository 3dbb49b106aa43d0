package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/logger"
)

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	cache cache.Cache
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// InvalidateCache clears all entries from the cache, stale copies included.
// The next retrievals go to the upstream, so invalidating during an outage
// gives up the stale fallback.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	items := h.cache.Size()
	h.cache.Clear()
	logger.InfoContext(r.Context(), "cache invalidated by admin", "dropped_entries", items)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "ok",
		"dropped_entries": items,
	})
}

// GetCacheStats returns current cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"hits":       stats.Hits,
		"misses":     stats.Misses,
		"expired":    stats.Expired,
		"evictions":  stats.Evictions,
		"size_bytes": stats.SizeBytes,
		"items":      stats.Items,
	})
}
