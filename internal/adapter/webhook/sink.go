// Package webhook delivers rendered results and ballot displays to an
// external surface over plain HTTP. The engine only ever sees the opaque
// references this package hands back.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/publish"
)

const requestTimeout = 10 * time.Second

// Sink implements publish.Sink against a results webhook. Create posts a
// view and receives a reference; Update rewrites the view at that reference.
// A 404 or 410 on update means the destination was deleted externally.
type Sink struct {
	baseURL string
	client  *http.Client
}

func NewSink(baseURL string) *Sink {
	return &Sink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (s *Sink) Create(ctx context.Context, view domain.RenderedView) (string, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("encode view: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/views", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create view: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create view: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if payload.Ref == "" {
		return "", fmt.Errorf("create view: empty ref in response")
	}
	return payload.Ref, nil
}

func (s *Sink) Update(ctx context.Context, ref string, view domain.RenderedView) error {
	body, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/views/"+ref, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("update view %s: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return publish.ErrRefMissing
	default:
		return fmt.Errorf("update view %s: unexpected status %d", ref, resp.StatusCode)
	}
}
