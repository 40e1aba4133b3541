// Package crawler fetches storefront pages, reconciles them against the
// catalog and hands the results to storage in batches.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gamesfinder/backend/internal/logging"

	"github.com/go-resty/resty/v2"
)

const DefaultCooldown = 5 * time.Minute

var ErrUnexpectedStatus = errors.New("crawler: unexpected status")

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ContentFetcher retrieves a remote document.
type ContentFetcher interface {
	Fetch(ctx context.Context, url, identifier string) ([]byte, error)
}

// NewClient builds the HTTP client shared by the storefront fetchers.
func NewClient(userAgent string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.8").
		SetTimeout(timeout)
}

// Fetcher performs GET requests and waits out one rate limit response.
type Fetcher struct {
	client   *resty.Client
	cooldown time.Duration
	sleep    Sleeper
	logger   *slog.Logger
}

type FetcherOption func(*Fetcher)

// WithCooldown sets how long to wait after a 429 before the retry.
func WithCooldown(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cooldown = d
	}
}

func WithFetchSleeper(s Sleeper) FetcherOption {
	return func(f *Fetcher) {
		f.sleep = s
	}
}

func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func NewFetcher(client *resty.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   client,
		cooldown: DefaultCooldown,
		sleep:    Sleep,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of url. identifier only labels log lines.
func (f *Fetcher) Fetch(ctx context.Context, url, identifier string) ([]byte, error) {
	body, status, err := f.get(ctx, url, identifier)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		f.logger.WarnContext(ctx, "rate limited, cooling down",
			"identifier", identifier,
			"cooldown", f.cooldown,
		)
		if err := f.sleep(ctx, f.cooldown); err != nil {
			return nil, err
		}

		body, status, err = f.get(ctx, url, identifier)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		f.logger.ErrorContext(ctx, "unexpected response status",
			"identifier", identifier,
			"status", status,
		)
		return nil, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, status, identifier)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url, identifier string) ([]byte, int, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		if res != nil && res.RawResponse != nil {
			f.logger.Log(ctx, logging.LevelCritical, "failed to read response body",
				"identifier", identifier,
				"err", err,
			)
		} else {
			f.logger.ErrorContext(ctx, "request failed",
				"identifier", identifier,
				"err", err,
			)
		}
		return nil, 0, fmt.Errorf("fetch %s: %w", identifier, err)
	}
	return res.Body(), res.StatusCode(), nil
}
