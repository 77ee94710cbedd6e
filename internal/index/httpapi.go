package index

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/notewik/noteindex/internal/logging"
	"github.com/notewik/noteindex/internal/ratelimit"
)

// HTTPAPIConfig configures the optional read-only status/query
// surface (SPEC_FULL.md §12): additive to the spec, which puts UIs
// out of scope but doesn't forbid exposing a read endpoint one could
// call instead of linking this package directly.
type HTTPAPIConfig struct {
	Host string
	Port int
	CORS bool

	// RateLimit configures per-route throttling. Nil falls back to
	// ratelimit.DefaultConfig(); set Enabled=false to turn it off.
	RateLimit *ratelimit.Config
}

// NewHTTPAPI builds a gin engine exposing GET /status and
// GET /pages/*path against idx. It never mutates the index: every
// handler goes through Index's own read-only entry points.
func NewHTTPAPI(idx *Index, cfg HTTPAPIConfig) *gin.Engine {
	log := logging.GetLogger("index.http")
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogResponse(c.Request.Method+" "+c.FullPath(), float64(time.Since(start).Milliseconds()))
	})

	if cfg.CORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet},
		}))
	}

	rlCfg := cfg.RateLimit
	if rlCfg == nil {
		rlCfg = ratelimit.DefaultConfig()
	}
	limiter := ratelimit.NewLimiter(rlCfg)
	r.Use(func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		result := limiter.Allow(route)
		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	})

	r.GET("/status", func(c *gin.Context) {
		uptodate, err := idx.ProbablyUptodate()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"probably_uptodate": uptodate,
			"worker_running":    idx.worker.isRunning(),
		})
	})

	r.GET("/pages/*path", func(c *gin.Context) {
		path := trimLeadingSlash(c.Param("path"))
		page, err := idx.LookupByPagename(path)
		if err != nil {
			if _, ok := err.(*IndexNotFoundError); ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"path":        path,
			"page_exists": page.PageExists.String(),
			"needscheck":  page.NeedsCheck.String(),
			"n_children":  page.NChildren,
		})
	})

	return r
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
