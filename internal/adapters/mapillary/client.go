// Package mapillary looks up street-level imagery near a point.
package mapillary

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/httpx"
	"detour-route-service/internal/ports"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://graph.mapillary.com"

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	// Maximum image ids returned per bbox lookup.
	Limit int
}

// Client implements ports.Imagery.
type Client struct {
	http    *httpx.Client
	baseURL string
	limit   int
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("mapillary token is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 3
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		http:    httpx.New(cfg.Timeout, httpx.WithHeader("Authorization", "OAuth "+cfg.Token)),
		baseURL: cfg.BaseURL,
		limit:   cfg.Limit,
		log:     log.Named("mapillary"),
	}, nil
}

type imagesResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Client) Nearby(ctx context.Context, bbox ports.BBox) ([]string, error) {
	q := url.Values{}
	q.Set("fields", "id")
	q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat))
	q.Set("limit", strconv.Itoa(c.limit))

	var out imagesResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/images?"+q.Encode(), &out); err != nil {
		return nil, domain.NewProviderError("mapillary", "images", err)
	}

	ids := make([]string, 0, len(out.Data))
	for _, d := range out.Data {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

type thumbResponse struct {
	Thumb1024 string `json:"thumb_1024_url"`
	Thumb2048 string `json:"thumb_2048_url"`
}

// ThumbnailURL prefers the 1024px thumbnail and falls back to 2048px.
func (c *Client) ThumbnailURL(ctx context.Context, imageID string) (string, error) {
	if imageID == "" {
		return "", fmt.Errorf("mapillary thumbnail: empty image id: %w", domain.ErrInvalidInput)
	}

	var out thumbResponse
	u := c.baseURL + "/" + url.PathEscape(imageID) + "?fields=thumb_1024_url,thumb_2048_url"
	if err := c.http.GetJSON(ctx, u, &out); err != nil {
		return "", domain.NewProviderError("mapillary", "thumbnail", err)
	}

	if out.Thumb1024 != "" {
		return out.Thumb1024, nil
	}
	return out.Thumb2048, nil
}
