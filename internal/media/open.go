package media

import (
	"context"
	"fmt"

	"github.com/aalan294/campus-life-admin/internal/vault"
)

// Media drivers.
const (
	DriverPinata = "pinata"
	DriverMinIO  = "minio"
	DriverLocal  = "local"
)

// Config selects and configures a media backend.
type Config struct {
	Driver     string
	Pinata     PinataConfig
	MinIO      MinIOConfig
	LocalDir   string
	BaseURL    string
	SigningKey string
	SealSecret string
	CacheURLs  bool
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (Service, error) {
	var svc Service
	var err error

	switch cfg.Driver {
	case DriverPinata:
		svc, err = NewPinata(cfg.Pinata)
	case DriverMinIO:
		svc, err = NewMinIO(ctx, cfg.MinIO)
	case DriverLocal, "":
		var signer *vault.URLSigner
		signer, err = vault.NewURLSigner([]byte(cfg.SigningKey))
		if err != nil {
			return nil, fmt.Errorf("local media: %w", err)
		}
		var key []byte
		if cfg.SealSecret != "" {
			key = vault.DeriveKey(cfg.SealSecret)
		}
		svc, err = NewLocal(LocalConfig{Dir: cfg.LocalDir, BaseURL: cfg.BaseURL, Signer: signer, SealKey: key})
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheURLs {
		return WithURLCache(svc), nil
	}
	return svc, nil
}

// LocalBackend returns the on-disk backend behind svc, if that is what it is.
func LocalBackend(svc Service) (*Local, bool) {
	if c, ok := svc.(*CachedSigner); ok {
		svc = c.Unwrap()
	}
	l, ok := svc.(*Local)
	return l, ok
}
