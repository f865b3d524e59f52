package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// s3Stub answers the handful of S3 calls the MinIO backend makes.
type s3Stub struct {
	mu          sync.Mutex
	buckets     map[string]bool
	objects     map[string]http.Header
	makeBuckets int
	denied      map[string]bool
}

func newS3Stub() *s3Stub {
	return &s3Stub{buckets: map[string]bool{}, objects: map[string]http.Header{}, denied: map[string]bool{}}
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, object, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case object == "" && r.Method == http.MethodHead:
		if !s.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case object == "" && r.Method == http.MethodPut:
		s.makeBuckets++
		s.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut:
		io.Copy(io.Discard, r.Body)
		s.objects[bucket+"/"+object] = r.Header.Clone()
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodHead:
		if s.denied[object] {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h, ok := s.objects[bucket+"/"+object]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", h.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (s *s3Stub) bucketCalls() (exists bool, created int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets["campus-media"], s.makeBuckets
}

func (s *s3Stub) deny(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[key] = true
}

func (s *s3Stub) object(bucket, key string) (http.Header, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.objects[bucket+"/"+key]
	return h, ok
}

func newTestMinIO(t *testing.T) (*MinIO, *s3Stub, *httptest.Server) {
	t.Helper()
	stub := newS3Stub()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	m, err := NewMinIO(context.Background(), MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "campus-media",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return m, stub, srv
}

func TestNewMinIO_CreatesMissingBucket(t *testing.T) {
	_, stub, srv := newTestMinIO(t)
	exists, created := stub.bucketCalls()
	assert.True(t, exists)
	assert.Equal(t, 1, created)

	// an existing bucket is reused
	_, err := NewMinIO(context.Background(), MinIOConfig{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Bucket:   "campus-media",
		Region:   "us-east-1",
	})
	require.NoError(t, err)
	_, created = stub.bucketCalls()
	assert.Equal(t, 1, created)
}

func TestMinIO_PinAndSign(t *testing.T) {
	ctx := context.Background()
	m, stub, srv := newTestMinIO(t)
	data := []byte("\x89PNG\r\n\x1a\nposter")

	cid, err := m.Pin(ctx, File{Name: "poster.png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, ContentID(data), cid)

	h, ok := stub.object("campus-media", cid)
	require.True(t, ok)
	assert.Equal(t, "image/png", h.Get("Content-Type"))
	assert.Equal(t, "poster.png", h.Get("X-Amz-Meta-Filename"))

	signed, err := m.SignedURL(ctx, cid, time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), u.Host)
	assert.Equal(t, "/campus-media/"+cid, u.Path)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestMinIO_Errors(t *testing.T) {
	ctx := context.Background()
	m, stub, _ := newTestMinIO(t)

	_, err := m.Pin(ctx, File{Name: "empty.png"})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = m.SignedURL(ctx, ContentID([]byte("never pinned")), time.Minute)
	assert.ErrorIs(t, err, ErrUnknownCID)

	_, err = m.SignedURL(ctx, "../campus-media", time.Minute)
	assert.ErrorIs(t, err, ErrUnknownCID)

	denied := ContentID([]byte("private"))
	stub.deny(denied)
	_, err = m.SignedURL(ctx, denied, time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownCID)
}
