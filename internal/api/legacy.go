package api

import (
	"errors"
	"net/http"

	"github.com/aalan294/campus-life-admin/internal/manager"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/gin-gonic/gin"
)

// The legacy routes answer the way the old REST server did: bare JSON
// arrays and objects keyed by "_id", errors as {"error": message}.

func (h *Handler) legacyList(m *manager.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := m.Refresh(c.Request.Context())
		if err != nil && (!errors.Is(err, manager.ErrFetch) || errors.Is(err, manager.ErrClosed)) {
			h.legacyFail(c, err)
			return
		}
		out := make([]gin.H, len(records))
		for i, r := range records {
			out[i] = flatten(r)
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) legacyCreate(m *manager.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		values, file, err := h.readInput(c, m.Schema())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, key := range []string{"_id", "id"} {
			delete(values, key)
		}
		rec, err := h.create(c.Request.Context(), m, values, file)
		if err != nil {
			h.legacyFail(c, err)
			return
		}
		c.JSON(http.StatusCreated, flatten(rec))
	}
}

func (h *Handler) legacyDelete(m *manager.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Delete(c.Request.Context(), c.Param("id")); err != nil {
			h.legacyFail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": m.Noun() + " deleted successfully"})
	}
}

func (h *Handler) legacyFail(c *gin.Context, err error) {
	var verr *manager.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Fields.Error()})
		return
	}
	code, _ := manager.CodeOf(err)
	status := http.StatusInternalServerError
	if code != "" {
		status = statusFor(code)
	}
	h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("Legacy request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

// flatten renders a record as a stored document with its id inline.
func flatten(r schema.Record) gin.H {
	out := make(gin.H, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["_id"] = r.ID
	if r.ViewURL != "" {
		out["viewUrl"] = r.ViewURL
	}
	return out
}
