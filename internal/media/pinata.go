package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Pinata endpoints.
const (
	DefaultPinataUploadURL = "https://uploads.pinata.cloud"
	DefaultPinataAPIURL    = "https://api.pinata.cloud"
)

// PinataConfig configures the Pinata IPFS backend.
type PinataConfig struct {
	JWT       string
	Gateway   string // e.g. example.mypinata.cloud
	UploadURL string
	APIURL    string
	Timeout   time.Duration
}

// Pinata pins files to IPFS through the Pinata v3 API.
type Pinata struct {
	cfg    PinataConfig
	client *http.Client
}

// NewPinata returns a Pinata client. Unset URLs use the public endpoints.
func NewPinata(cfg PinataConfig) (*Pinata, error) {
	if cfg.JWT == "" {
		return nil, fmt.Errorf("pinata: JWT not configured")
	}
	if cfg.Gateway == "" {
		return nil, fmt.Errorf("pinata: gateway not configured")
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultPinataUploadURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultPinataAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Gateway = strings.TrimPrefix(strings.TrimPrefix(cfg.Gateway, "https://"), "http://")
	return &Pinata{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type pinataUploadResponse struct {
	Data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		CID  string `json:"cid"`
		Size int64  `json:"size"`
	} `json:"data"`
}

type pinataSignRequest struct {
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
	Date    int64  `json:"date"`
	Method  string `json:"method"`
}

type pinataSignResponse struct {
	Data string `json:"data"`
}

// Pin uploads f as a multipart form and returns the CID Pinata assigned.
func (p *Pinata) Pin(ctx context.Context, f File) (string, error) {
	if f.Size() == 0 {
		return "", ErrEmptyFile
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	name := f.Name
	if name == "" {
		name = "upload"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return "", err
	}
	if err := w.WriteField("network", "private"); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.UploadURL+"/v3/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out pinataUploadResponse
	if err := p.do(req, &out); err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	if out.Data.CID == "" {
		return "", fmt.Errorf("pinata upload: response carried no cid")
	}
	return out.Data.CID, nil
}

// SignedURL asks Pinata to sign a gateway URL for cid.
func (p *Pinata) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cid) == "" {
		return "", ErrUnknownCID
	}
	payload, err := json.Marshal(pinataSignRequest{
		URL:     fmt.Sprintf("https://%s/files/%s", p.cfg.Gateway, cid),
		Expires: int64(ttl / time.Second),
		Date:    time.Now().Unix(),
		Method:  http.MethodGet,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/v3/files/sign", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out pinataSignResponse
	if err := p.do(req, &out); err != nil {
		return "", fmt.Errorf("pinata sign %s: %w", cid, err)
	}
	if out.Data == "" {
		return "", fmt.Errorf("pinata sign %s: empty url", cid)
	}
	return out.Data, nil
}

func (p *Pinata) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.cfg.JWT)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownCID
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
