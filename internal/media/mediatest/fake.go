// Package mediatest provides an in-memory media service for tests.
package mediatest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
)

// Service is an in-memory media.Service. Setting PinErr or SignErr makes the
// corresponding call fail.
type Service struct {
	mu      sync.Mutex
	files   map[string]media.File
	next    int
	fixed   string
	PinErr  error
	SignErr error
	Pins    int
	Signs   int
}

// New returns an empty fake.
func New() *Service {
	return &Service{files: make(map[string]media.File)}
}

// NextCID makes the next Pin return cid instead of a generated one.
func (s *Service) NextCID(cid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed = cid
}

// FailPin sets PinErr under the lock.
func (s *Service) FailPin(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PinErr = err
}

// FailSign sets SignErr under the lock.
func (s *Service) FailSign(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SignErr = err
}

func (s *Service) Pin(ctx context.Context, f media.File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pins++
	if s.PinErr != nil {
		return "", s.PinErr
	}
	if f.Size() == 0 {
		return "", media.ErrEmptyFile
	}

	cid := s.fixed
	s.fixed = ""
	if cid == "" {
		s.next++
		cid = fmt.Sprintf("cid%d", s.next)
	}
	s.files[cid] = f
	return cid, nil
}

func (s *Service) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Signs++
	if s.SignErr != nil {
		return "", s.SignErr
	}
	if _, ok := s.files[cid]; !ok {
		return "", fmt.Errorf("%s: %w", cid, media.ErrUnknownCID)
	}
	return fmt.Sprintf("https://media.test/%s?ttl=%d", cid, int(ttl.Seconds())), nil
}

// Seed registers cid as existing content without a Pin call.
func (s *Service) Seed(cid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[cid] = media.File{Name: cid, Data: []byte(cid)}
}

// Counts returns the number of Pin and SignedURL calls so far.
func (s *Service) Counts() (pins, signs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Pins, s.Signs
}
