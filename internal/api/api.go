// Package api exposes the entity managers over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aalan294/campus-life-admin/internal/dashboard"
	"github.com/aalan294/campus-life-admin/internal/manager"
	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// DefaultMaxUpload bounds one uploaded file.
const DefaultMaxUpload = 10 << 20

// Pinger is implemented by store backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the entity routes of a dashboard.
type Handler struct {
	dash      *dashboard.Dashboard
	local     *media.Local
	store     Pinger
	policy    *bluemonday.Policy
	maxUpload int64
	log       zerolog.Logger
}

// NewHandler returns a Handler. svc enables /media when it is the local
// backend; store, when it implements Pinger, is checked by /api/health.
func NewHandler(d *dashboard.Dashboard, svc media.Service, store any, log zerolog.Logger) *Handler {
	h := &Handler{
		dash:      d,
		policy:    bluemonday.StrictPolicy(),
		maxUpload: DefaultMaxUpload,
		log:       log,
	}
	if svc != nil {
		h.local, _ = media.LocalBackend(svc)
	}
	if p, ok := store.(Pinger); ok {
		h.store = p
	}
	return h
}

// Health reports liveness and, when possible, store reachability.
func (h *Handler) Health(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			ErrorResponse(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "document store unreachable")
			return
		}
	}
	Success(c, http.StatusOK, gin.H{"status": "ok", "kinds": len(h.dash.Kinds())})
}

// Kinds lists the schemas so clients can render forms.
func (h *Handler) Kinds(c *gin.Context) {
	Success(c, http.StatusOK, h.dash.Kinds())
}

// List refreshes and returns the records of one kind. When the store cannot
// be read the last known list is returned with a warning.
func (h *Handler) List(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	records, err := m.Refresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, manager.ErrFetch) && !errors.Is(err, manager.ErrClosed) {
			SuccessWithWarning(c, http.StatusOK, records, m.Status())
			return
		}
		h.fail(c, err)
		return
	}
	Success(c, http.StatusOK, records)
}

// Create validates the request as a draft and submits it.
func (h *Handler) Create(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	values, file, err := h.readInput(c, m.Schema())
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	rec, err := h.create(c.Request.Context(), m, values, file)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, http.StatusCreated, rec)
}

// Update applies a partial change to one record.
func (h *Handler) Update(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	id := c.Param("id")
	values, file, err := h.readInput(c, m.Schema())
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := m.Update(c.Request.Context(), id, values, file); err != nil {
		h.fail(c, err)
		return
	}
	rec, ok := m.Record(id)
	if !ok {
		Success(c, http.StatusOK, gin.H{"id": id})
		return
	}
	Success(c, http.StatusOK, rec)
}

// Delete removes one record.
func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := m.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"id": id})
}

// Activate makes one record the only active one of its kind.
func (h *Handler) Activate(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if !m.Schema().Exclusive() {
		BadRequest(c, fmt.Sprintf("%s records have no active flag", m.Schema().Kind))
		return
	}
	if err := m.Activate(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, http.StatusOK, m.Records())
}

// MediaURL issues a fresh view URL for a record's media.
func (h *Handler) MediaURL(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if !m.Schema().HasMedia() {
		BadRequest(c, fmt.Sprintf("%s records have no media", m.Schema().Kind))
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			BadRequest(c, "ttl must be a positive number of seconds")
			return
		}
		ttl = time.Duration(secs) * time.Second
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	url, err := m.ResolveViewURL(ctx, id, ttl)
	if errors.Is(err, manager.ErrNotFound) {
		// the record may have been created elsewhere since the last refresh
		if _, rerr := m.Refresh(ctx); rerr == nil {
			url, err = m.ResolveViewURL(ctx, id, ttl)
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"url": url})
}

// create fills a fresh draft from values and submits it.
func (h *Handler) create(ctx context.Context, m *manager.Manager, values map[string]any, file *media.File) (schema.Record, error) {
	form := m.NewDraft()
	fe := manager.FieldErrors{}
	for name, v := range values {
		if err := form.SetField(name, v); err != nil {
			var verr *manager.ValidationError
			if errors.As(err, &verr) {
				for k, msg := range verr.Fields {
					fe[k] = msg
				}
			}
		}
	}
	if len(fe) > 0 {
		return schema.Record{}, &manager.ValidationError{Kind: m.Schema().Kind, Fields: fe}
	}
	if file != nil {
		form.SetFile(*file)
	}

	id, err := m.Submit(ctx, form)
	if err != nil {
		return schema.Record{}, err
	}
	if rec, ok := m.Record(id); ok {
		return rec, nil
	}
	return schema.Record{ID: id, Fields: map[string]any{}}, nil
}

// manager resolves the :kind parameter or writes a 404.
func (h *Handler) manager(c *gin.Context) (*manager.Manager, bool) {
	kind := c.Param("kind")
	m, ok := h.dash.Manager(kind)
	if !ok {
		NotFound(c, fmt.Sprintf("unknown kind %q", kind))
	}
	return m, ok
}

// readInput decodes a JSON object or a multipart form. Strings are
// stripped of markup.
func (h *Handler) readInput(c *gin.Context, s *schema.Schema) (map[string]any, *media.File, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.readMultipart(c, s)
	}

	values := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&values); err != nil {
			return nil, nil, fmt.Errorf("malformed JSON: %w", err)
		}
	}
	h.sanitize(values)
	return values, nil, nil
}

func (h *Handler) readMultipart(c *gin.Context, s *schema.Schema) (map[string]any, *media.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, fmt.Errorf("malformed form: %w", err)
	}

	values := make(map[string]any, len(form.Value))
	for k, vs := range form.Value {
		if len(vs) > 0 {
			values[k] = vs[0]
		}
	}
	h.sanitize(values)

	var header *multipart.FileHeader
	for _, name := range []string{"file", s.MediaField} {
		if fhs := form.File[name]; name != "" && len(fhs) > 0 {
			header = fhs[0]
			break
		}
	}
	if header == nil {
		return values, nil, nil
	}
	if header.Size > h.maxUpload {
		return nil, nil, fmt.Errorf("file exceeds %d bytes", h.maxUpload)
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return values, &media.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) sanitize(values map[string]any) {
	for k, v := range values {
		if str, ok := v.(string); ok {
			// StrictPolicy escapes entities; only markup should go
			values[k] = html.UnescapeString(h.policy.Sanitize(str))
		}
	}
}

// fail maps a manager error onto the envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *manager.ValidationError
	if errors.As(err, &verr) {
		ErrorWithDetails(c, http.StatusUnprocessableEntity, string(manager.CodeValidation), "Validation failed", verr.Fields)
		return
	}
	if errors.Is(err, manager.ErrNoActiveGroup) {
		BadRequest(c, err.Error())
		return
	}

	code, ok := manager.CodeOf(err)
	if !ok {
		h.log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Unclassified error")
		InternalError(c)
		return
	}

	status := statusFor(code)
	msg := string(code)
	var opErr *manager.OpError
	if errors.As(err, &opErr) {
		msg = opErr.Message()
	}
	if status >= http.StatusInternalServerError {
		h.log.Warn().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
	}
	ErrorResponse(c, status, string(code), msg)
}

func statusFor(code manager.Code) int {
	switch code {
	case manager.CodeValidation:
		return http.StatusUnprocessableEntity
	case manager.CodeNotFound:
		return http.StatusNotFound
	case manager.CodeUpload, manager.CodeResolve:
		return http.StatusBadGateway
	case manager.CodeBusy:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
