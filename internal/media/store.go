// Package media is the boundary to the external media store: it takes a
// client-supplied payload and returns the durable URL the store minted for
// it. Message rows only ever carry that URL string.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"murmur/internal/apperr"
)

type Store interface {
	// Upload pushes the payload and returns its durable URL.
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

// HTTPStore posts payloads to a single upload endpoint that answers
// {"url": "..."}.
type HTTPStore struct {
	endpoint string
	client   *http.Client
}

func NewHTTPStore(endpoint string) *HTTPStore {
	return &HTTPStore{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) Upload(ctx context.Context, data []byte, name string) (string, error) {
	if s.endpoint == "" {
		return "", apperr.Upstream("media store not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", apperr.Upstream("media upload request", err)
	}
	req.Header.Set("Content-Type", DetectType(data))
	if name != "" {
		req.Header.Set("X-File-Name", name)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Upstream("media upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Upstream(fmt.Sprintf("media store returned %d", resp.StatusCode), nil)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.URL == "" {
		return "", apperr.Upstream("media store response unreadable", err)
	}
	return out.URL, nil
}

// Decode accepts either a bare base64 string or a data URL
// ("data:<type>;base64,<payload>") as sent by browser clients.
func Decode(payload string) ([]byte, error) {
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.Validation("attachment is not valid base64 data")
	}
	return data, nil
}

// DetectType sniffs the payload's MIME type from its content.
func DetectType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage reports whether the payload should land in the message's image
// slot rather than the generic file slot. The declared type wins when the
// client sent one; otherwise the content is sniffed.
func IsImage(data []byte, declared string) bool {
	if declared != "" {
		return strings.HasPrefix(declared, "image/")
	}
	return strings.HasPrefix(DetectType(data), "image/")
}
