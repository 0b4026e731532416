package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// StoreAdapter is the two-step contract every storefront scraper implements.
//
// Locate returns "" with a nil error when nothing plausible was found.
// ExtractOffers returns nil (never an empty slice) when no offers could be derived.
type StoreAdapter interface {
	Locate(ctx context.Context, productName string) (string, error)
	ExtractOffers(ctx context.Context, productURL string) ([]PriceOffer, error)
}

// EventStream is an open server-sent event stream of one check session
type EventStream interface {
	// Next blocks until the next event arrives. It returns io.EOF when the
	// server ends the stream.
	Next(ctx context.Context) (StreamEvent, error)
	Close() error
}

// StreamSource opens check streams against the backend
type StreamSource interface {
	OpenCheckStream(ctx context.Context, productName string) (EventStream, error)
}

// PriceChecker asks the backend to price a single store link
type PriceChecker interface {
	CheckPrice(ctx context.Context, storeName, productURL string) ([]PriceOffer, error)
}
