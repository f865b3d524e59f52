package api

import (
	"errors"
	"net/http"

	"github.com/aalan294/campus-life-admin/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = DefaultMaxUpload
	r.Use(RequestID(), Logger(h.log), Recovery(h.log), CORS(opts.CORSOrigins))
	h.Register(r)

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Register mounts the API, legacy and media routes on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/kinds", h.Kinds)
	api.GET("/:kind", h.List)
	api.POST("/:kind", h.Create)
	api.PATCH("/:kind/:id", h.Update)
	api.DELETE("/:kind/:id", h.Delete)
	api.POST("/:kind/:id/activate", h.Activate)
	api.GET("/:kind/:id/media-url", h.MediaURL)

	for _, s := range h.dash.Kinds() {
		if s.LegacyPath == "" {
			continue
		}
		m, _ := h.dash.Manager(s.Kind)
		r.GET(s.LegacyPath, h.legacyList(m))
		r.POST(s.LegacyPath, h.legacyCreate(m))
		r.DELETE(s.LegacyPath+"/:id", h.legacyDelete(m))
	}

	if h.local != nil {
		r.GET("/media/:cid", h.ServeMedia)
	}
}

// ServeMedia streams a locally stored file for a valid signed URL.
func (h *Handler) ServeMedia(c *gin.Context) {
	if err := h.local.Verifier().Verify(c.Request.URL); err != nil {
		msg := "invalid signature"
		if errors.Is(err, vault.ErrExpired) {
			msg = "link expired"
		}
		ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", msg)
		return
	}

	data, contentType, err := h.local.Read(c.Param("cid"))
	if err != nil {
		NotFound(c, "media not found")
		return
	}
	c.Header("Cache-Control", "private, max-age=60")
	c.Data(http.StatusOK, contentType, data)
}
