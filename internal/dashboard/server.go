// Package dashboard exposes the read-only JSON query API.
package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"market-intel/internal/config"
	"market-intel/internal/store"
	"market-intel/internal/stream"
)

// Server serves dashboard queries over HTTP.
type Server struct {
	store  store.DataStore
	cfg    *config.Config
	logger zerolog.Logger
	cache  *queryCache
	hub    *stream.Hub
	now    func() time.Time
}

// NewServer creates a dashboard server.
func NewServer(st store.DataStore, cfg *config.Config, logger zerolog.Logger) *Server {
	ttl := cfg.Dashboard.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Server{
		store:  st,
		cfg:    cfg,
		logger: logger,
		cache:  newQueryCache(ttl),
		now:    time.Now,
	}
}

// AttachHub enables the live alert stream endpoint.
func (s *Server) AttachHub(hub *stream.Hub) {
	s.hub = hub
}

// Router builds the gin engine with all dashboard routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	api := router.Group("/api")
	api.GET("/market-overview", s.handleQuery("market-overview", s.marketOverview))
	api.GET("/price-trends", s.handleQuery("price-trends", s.priceTrends))
	api.GET("/supplier-distribution", s.handleQuery("supplier-distribution", s.supplierDistribution))
	api.GET("/trending-topics", s.handleQuery("trending-topics", s.trendingTopics))
	api.GET("/scraping-health", s.handleQuery("scraping-health", s.scrapingHealth))
	api.GET("/content-opportunities", s.handleQuery("content-opportunities", s.contentOpportunities))
	api.GET("/alerts-summary", s.handleQuery("alerts-summary", s.alertsSummary))
	if s.hub != nil {
		api.GET("/stream/alerts", s.handleAlertStream)
	}

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)

	return router
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Dashboard.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.cfg.Dashboard.ListenAddr).Msg("Dashboard listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// queryFilters are the optional filters every /api query accepts.
type queryFilters struct {
	Category string
	Window   time.Duration
}

func (s *Server) filtersFrom(c *gin.Context) queryFilters {
	f := queryFilters{
		Category: c.Query("category"),
		Window:   s.cfg.Analysis.Window,
	}
	if w := c.Query("window"); w != "" {
		if d, ok := parseWindow(w); ok {
			f.Window = d
		}
	}
	return f
}

// parseWindow accepts Go durations plus a day suffix ("7d", "30d").
func parseWindow(s string) (time.Duration, bool) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// handleQuery wraps a compute function with the TTL cache. A fresh cache hit
// is served as-is; on recompute failure the stale entry is served with the
// staleness flag set rather than erroring.
func (s *Server) handleQuery(name string, compute func(ctx context.Context, f queryFilters) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := s.filtersFrom(c)
		key := name + "?category=" + filters.Category + "&window=" + filters.Window.String()
		now := s.now()

		entry, fresh, found := s.cache.get(key, now)
		if found && fresh {
			c.JSON(http.StatusOK, gin.H{
				"generated_at": entry.generatedAt,
				"stale":        false,
				"data":         entry.payload,
			})
			return
		}

		payload, err := compute(c.Request.Context(), filters)
		if err != nil {
			s.logger.Error().Err(err).Str("query", name).Msg("Dashboard query failed")
			if found {
				c.JSON(http.StatusOK, gin.H{
					"generated_at": entry.generatedAt,
					"stale":        true,
					"data":         entry.payload,
				})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "query failed"})
			return
		}

		s.cache.set(key, payload, now)
		c.JSON(http.StatusOK, gin.H{
			"generated_at": now,
			"stale":        false,
			"data":         payload,
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.store.GetSources(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
