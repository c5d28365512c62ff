// Package embedding scores how well an image matches a text description
// through an external text-image embedding service.
package embedding

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/httpx"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client implements ports.Embedding. The service accepts
// {"text", "image_url"} and answers {"similarity"}.
type Client struct {
	http *httpx.Client
	url  string
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("embedding url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http: httpx.New(cfg.Timeout),
		url:  strings.TrimRight(cfg.URL, "/"),
		log:  log.Named("embedding"),
	}, nil
}

type similarityRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

type similarityResponse struct {
	Similarity *float64 `json:"similarity"`
}

// Similarity returns the cosine similarity clamped to [-1,1].
func (c *Client) Similarity(ctx context.Context, text, imageURL string) (float64, error) {
	var out similarityResponse
	if err := c.http.PostJSON(ctx, c.url+"/similarity", similarityRequest{Text: text, ImageURL: imageURL}, &out); err != nil {
		return 0, domain.NewProviderError("embedding", "similarity", err)
	}
	if out.Similarity == nil || math.IsNaN(*out.Similarity) {
		return 0, domain.NewProviderError("embedding", "similarity", errors.New("response has no similarity"))
	}
	return math.Max(-1, math.Min(1, *out.Similarity)), nil
}
