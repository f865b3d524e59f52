// Package media stores uploaded images in a content-addressed pinning
// service and hands out time-limited URLs for viewing them.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrUnknownCID is returned when a content identifier is empty or the
	// service holds no content for it.
	ErrUnknownCID = errors.New("unknown content identifier")
	// ErrEmptyFile is returned by Pin for a file without content.
	ErrEmptyFile = errors.New("empty file")
)

// DefaultURLTTL is how long view URLs stay valid unless a caller asks for
// something else.
const DefaultURLTTL = 60 * time.Second

// File is a pending upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int { return len(f.Data) }

// DetectType fills ContentType from the payload when the client sent none.
func (f File) DetectType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

// Pinner uploads content and returns its content identifier (CID).
type Pinner interface {
	Pin(ctx context.Context, f File) (string, error)
}

// Signer resolves a CID into a URL valid for ttl.
type Signer interface {
	SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error)
}

// Service is a complete media backend.
type Service interface {
	Pinner
	Signer
}

// ContentID derives the identifier used by the self-hosted backends.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256-" + hex.EncodeToString(sum[:])
}

// validCID accepts identifiers that are safe to use as object keys and
// file names.
func validCID(cid string) bool {
	if cid == "" || len(cid) > 128 {
		return false
	}
	for _, r := range cid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
