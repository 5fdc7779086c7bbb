package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/poll"
)

// Display implements poll.Display against the same webhook surface: it posts
// a ballot with one vote affordance per option, each carrying the poll's
// correlation token, and can disable the ballot once voting closes.
type Display struct {
	baseURL string
	client  *http.Client
}

func NewDisplay(baseURL string) *Display {
	return &Display{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type ballotOption struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Token string `json:"token"`
}

type ballotPayload struct {
	PollID    string         `json:"poll_id"`
	Question  string         `json:"question"`
	Options   []ballotOption `json:"options"`
	EndsAt    time.Time      `json:"ends_at"`
	OriginRef string         `json:"origin_ref,omitempty"`
}

func (d *Display) AttachBallot(ctx context.Context, p *domain.Poll) (string, error) {
	payload := ballotPayload{
		PollID:    p.ID,
		Question:  p.Question,
		Options:   make([]ballotOption, len(p.Options)),
		EndsAt:    p.EndTime,
		OriginRef: p.OriginRef,
	}
	for i, label := range p.Options {
		payload.Options[i] = ballotOption{
			Index: i,
			Label: label,
			Token: poll.VoteToken(i, p.ID),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode ballot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/ballots", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ballot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("attach ballot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("attach ballot: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ballot response: %w", err)
	}
	if result.Ref == "" {
		return "", fmt.Errorf("attach ballot: empty ref in response")
	}
	return result.Ref, nil
}

func (d *Display) DisableBallot(ctx context.Context, p *domain.Poll) error {
	if p.DisplayRef == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/ballots/"+p.DisplayRef+"/disable", nil)
	if err != nil {
		return fmt.Errorf("build disable request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("disable ballot %s: %w", p.DisplayRef, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusGone:
		// A vanished ballot is already as disabled as it gets.
		return nil
	default:
		return fmt.Errorf("disable ballot %s: unexpected status %d", p.DisplayRef, resp.StatusCode)
	}
}
