package ports

import "context"

// Bounding box in degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contract for street-level imagery lookups.
type Imagery interface {
	// Nearby returns image ids inside bbox, possibly none.
	Nearby(ctx context.Context, bbox BBox) ([]string, error)
	// ThumbnailURL returns a fetchable thumbnail for the image, or "" if none.
	ThumbnailURL(ctx context.Context, imageID string) (string, error)
}

// Contract for text-image similarity.
type Embedding interface {
	// Similarity returns a cosine similarity in [-1,1].
	Similarity(ctx context.Context, text, imageURL string) (float64, error)
}
