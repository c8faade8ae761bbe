package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"yacht-platform/services"
	"yacht-platform/storage"
	"yacht-platform/utils"
)

type Handler struct {
	runner   *services.Runner
	store    storage.ListingStore
	dedup    *services.Deduplicator
	insights *services.InsightService
	logger   *utils.Logger
}

func NewHandler(runner *services.Runner, store storage.ListingStore, dedup *services.Deduplicator,
	insights *services.InsightService, logger *utils.Logger) *Handler {
	return &Handler{runner: runner, store: store, dedup: dedup, insights: insights, logger: logger}
}

// RegisterRoutes mounts the API on r. Batch endpoints share one limiter.
func RegisterRoutes(r *gin.Engine, h *Handler, runLimit gin.HandlerFunc) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		runs := v1.Group("", runLimit)
		runs.POST("/deduplicate", h.Deduplicate)
		runs.POST("/score", h.Score)
		runs.POST("/deduplicate-and-score", h.DeduplicateAndScore)

		v1.GET("/runs/last", h.LastRun)
		v1.GET("/listings", h.ListListings)
		v1.GET("/listings/:id", h.GetListing)
		v1.GET("/listings/:id/compare/:other", h.CompareListings)
		v1.GET("/stats", h.Stats)
	}
}

// Health: GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Deduplicate: POST /v1/deduplicate
func (h *Handler) Deduplicate(c *gin.Context) {
	res, err := h.runner.RunDeduplication(c.Request.Context())
	if err != nil {
		h.runFailed(c, "deduplication", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"kind": services.RunDeduplication},
		"data": res,
	})
}

// Score: POST /v1/score
func (h *Handler) Score(c *gin.Context) {
	res, err := h.runner.RunScoring(c.Request.Context())
	if err != nil {
		h.runFailed(c, "scoring", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"kind": services.RunScoring},
		"data": res,
	})
}

// DeduplicateAndScore: POST /v1/deduplicate-and-score
func (h *Handler) DeduplicateAndScore(c *gin.Context) {
	report, err := h.runner.RunAll(c.Request.Context())
	if err != nil {
		h.runFailed(c, "deduplication and scoring", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"kind": report.Kind, "run_id": report.ID},
		"data": report,
	})
}

func (h *Handler) runFailed(c *gin.Context, what string, err error) {
	if errors.Is(err, services.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("[api] %s failed: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": what + " failed: " + err.Error()})
}

// LastRun: GET /v1/runs/last
func (h *Handler) LastRun(c *gin.Context) {
	report, ok, err := h.runner.LastReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run has completed yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"run_id": report.ID},
		"data": report,
	})
}

// ListListings: GET /v1/listings?brand=&location=&min_price=&max_price=&min_year=&max_year=&skip=&limit=
func (h *Handler) ListListings(c *gin.Context) {
	f := storage.ListingFilter{
		Brand:    c.Query("brand"),
		Location: c.Query("location"),
	}
	var err error
	if f.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		badRequest(c, err)
		return
	}
	if f.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		badRequest(c, err)
		return
	}
	if f.MinYear, err = queryInt(c, "min_year"); err != nil {
		badRequest(c, err)
		return
	}
	if f.MaxYear, err = queryInt(c, "max_year"); err != nil {
		badRequest(c, err)
		return
	}
	if f.Skip, err = queryInt(c, "skip"); err != nil || f.Skip < 0 {
		badRequest(c, errors.New("skip must be a non-negative integer"))
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, err)
		return
	}

	listings, total, err := h.store.Query(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"total": total,
			"count": len(listings),
			"skip":  f.Skip,
		},
		"data": listings,
	})
}

// GetListing: GET /v1/listings/:id
func (h *Handler) GetListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": l})
}

// CompareListings: GET /v1/listings/:id/compare/:other
// Shows which duplicate rule applies to the pair and every similarity signal.
func (h *Handler) CompareListings(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	other, ok := pathID(c, "other")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	l1, err := h.store.Get(ctx, id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	l2, err := h.store.Get(ctx, other)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"ids": []int64{id, other}},
		"data": h.dedup.Explain(l1, l2),
	})
}

// Stats: GET /v1/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.store.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	active, err := h.store.ActiveListings(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": counts,
		"data": h.insights.Generate(active),
	})
}

func (h *Handler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key + " parameter")
	}
	return n, nil
}

func queryFloat(c *gin.Context, key string) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New("invalid " + key + " parameter")
	}
	return f, nil
}
