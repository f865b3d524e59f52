package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/internal/observability"
	"github.com/rs/zerolog"
)

// Uploader moves pending files to the pinning service and resolves stored
// references into view URLs. It never retries.
type Uploader struct {
	kind    string
	svc     media.Service
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewUploader returns an Uploader for one entity kind.
func NewUploader(kind string, svc media.Service, metrics *observability.Metrics, log zerolog.Logger) *Uploader {
	return &Uploader{kind: kind, svc: svc, metrics: metrics, log: log}
}

// Upload pins f and returns its content identifier.
func (u *Uploader) Upload(ctx context.Context, f media.File) (string, error) {
	start := time.Now()
	cid, err := u.svc.Pin(ctx, f)
	u.metrics.ObserveUpload(u.kind, err)
	if err != nil {
		u.log.Error().Err(err).Str("file", f.Name).Int("size", f.Size()).Msg("Media upload failed")
		return "", &OpError{Code: CodeUpload, Op: "upload", Kind: u.kind, Err: err}
	}

	u.log.Debug().Str("cid", cid).Str("file", f.Name).Dur("took", time.Since(start)).Msg("Media uploaded")
	return cid, nil
}

// ResolveViewURL returns a URL for cid that stays valid for ttl.
func (u *Uploader) ResolveViewURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cid) == "" {
		return "", &OpError{Code: CodeResolve, Op: "resolve", Kind: u.kind, Err: media.ErrUnknownCID}
	}
	url, err := u.svc.SignedURL(ctx, cid, ttl)
	u.metrics.ObserveResolve(u.kind, err)
	if err != nil {
		return "", &OpError{Code: CodeResolve, Op: "resolve", Kind: u.kind, Err: fmt.Errorf("%s: %w", cid, err)}
	}
	return url, nil
}
