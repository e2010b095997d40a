package source

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Page is one fetched board page. FinalURL reflects redirects and is the
// base for resolving relative hrefs.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// FetcherConfig tunes the shared board transport.
type FetcherConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	PerHostRPS     float64
	PerHostBurst   int
}

// PageFetcher retrieves single pages through a Colly collector cloned per
// request, behind a per-host rate limiter. It is safe for concurrent use.
type PageFetcher struct {
	baseCollector *colly.Collector
	limiter       *hostLimiter
	logger        *zap.Logger
}

// NewPageFetcher builds the shared fetcher used by every adapter.
func NewPageFetcher(cfg FetcherConfig, logger *zap.Logger) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	return &PageFetcher{
		baseCollector: base,
		limiter:       newHostLimiter(cfg.PerHostRPS, cfg.PerHostBurst),
		logger:        logger,
	}
}

// Fetch retrieves one URL. Non-2xx statuses surface as errors.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if err := f.limiter.wait(ctx, rawURL); err != nil {
		return Page{}, err
	}

	collector := f.baseCollector.Clone()
	resultCh := make(chan pageResult, 1)
	var once sync.Once
	send := func(res pageResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(pageResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown collector error")
		}
		send(pageResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

type pageResult struct {
	page Page
	err  error
}
