package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aalan294/campus-life-admin/internal/vault"
)

// LocalConfig configures the on-disk backend.
type LocalConfig struct {
	Dir     string
	BaseURL string // public origin of the admin API, e.g. http://localhost:8080
	Signer  *vault.URLSigner
	SealKey []byte // optional AES-256 key for encryption at rest
}

// Local keeps media on disk and serves it through the admin API at
// /media/:cid with HMAC-signed URLs.
type Local struct {
	cfg LocalConfig
}

// NewLocal prepares the storage directory.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("local media: url signer required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Local{cfg: cfg}, nil
}

func (l *Local) path(cid string) string {
	return filepath.Join(l.cfg.Dir, cid)
}

// Pin writes f to disk under its content hash.
func (l *Local) Pin(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Size() == 0 {
		return "", ErrEmptyFile
	}
	cid := ContentID(f.Data)

	data := f.Data
	if l.cfg.SealKey != nil {
		sealed, err := vault.Seal(f.Data, l.cfg.SealKey)
		if err != nil {
			return "", fmt.Errorf("seal %s: %w", cid, err)
		}
		data = sealed
	}

	// one temp file per writer; concurrent pins of the same bytes each
	// rename a complete object into place
	tmp, err := os.CreateTemp(l.cfg.Dir, cid+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", cid, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), l.path(cid)); err != nil {
		return "", err
	}
	return cid, nil
}

// SignedURL returns a signed /media URL for a stored CID.
func (l *Local) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validCID(cid) {
		return "", ErrUnknownCID
	}
	if _, err := os.Stat(l.path(cid)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", cid, ErrUnknownCID)
		}
		return "", err
	}
	return l.cfg.Signer.Sign(l.cfg.BaseURL+"/media/"+cid, ttl)
}

// Verifier returns the signer that checks incoming /media requests.
func (l *Local) Verifier() *vault.URLSigner {
	return l.cfg.Signer
}

// Read returns the stored bytes for cid and their content type.
func (l *Local) Read(cid string) ([]byte, string, error) {
	if !validCID(cid) {
		return nil, "", ErrUnknownCID
	}
	data, err := os.ReadFile(l.path(cid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", cid, ErrUnknownCID)
		}
		return nil, "", err
	}
	if l.cfg.SealKey != nil {
		if data, err = vault.Open(data, l.cfg.SealKey); err != nil {
			return nil, "", fmt.Errorf("open %s: %w", cid, err)
		}
	}
	return data, http.DetectContentType(data), nil
}
