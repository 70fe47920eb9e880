// Package jobsearch fetches job ads from the JobTech job-search API using
// offset pagination.
package jobsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/metrics"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	searchPath     = "/search"
	maxErrorBody   = 200
)

// PageFetcher fetches a single page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error)
}

// Client talks to the search endpoint. It never retries.
type Client struct {
	baseURL string
	http    *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRateLimit paces outgoing requests to rps per second. A non-positive
// value leaves requests unpaced.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.http.SetHeader("User-Agent", ua) }
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetHeader("Accept", "application/json")
	httpClient.SetHeader("User-Agent", "hr-analytics-jobsearch/1.0")
	httpClient.SetTimeout(defaultTimeout)

	c := &Client{baseURL: baseURL, http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage issues one GET /search request and decodes the hits.
func (c *Client) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("occupation-field", req.OccupationField)
	params.Set("offset", strconv.Itoa(req.Offset))
	params.Set("limit", strconv.Itoa(req.Limit))
	reqURL := c.baseURL + searchPath + "?" + params.Encode()

	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(searchPath)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("transport").Inc()
		return model.Page{}, &TransportError{URL: reqURL, Err: err}
	}
	if !res.IsSuccess() {
		metrics.FetchErrors.WithLabelValues("status").Inc()
		return model.Page{}, &TransportError{
			URL:        reqURL,
			StatusCode: res.StatusCode(),
			Body:       truncate(res.String(), maxErrorBody),
			Err:        fmt.Errorf("unexpected status %s", res.Status()),
		}
	}

	page, err := decodePage(res.Body())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("malformed").Inc()
		return model.Page{}, &MalformedResponseError{URL: reqURL, Err: err}
	}
	return page, nil
}

// decodePage parses a search response body. A missing, null or non-array
// "hits" member yields an empty page.
func decodePage(body []byte) (model.Page, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.Page{}, fmt.Errorf("json unmarshal: %w", err)
	}
	if envelope == nil {
		return model.Page{}, errors.New("body is not a JSON object")
	}

	var page model.Page
	if raw, ok := envelope["total"]; ok {
		var total struct {
			Value *int `json:"value"`
		}
		if json.Unmarshal(raw, &total) == nil {
			page.Total = total.Value
		}
	}

	raw, ok := envelope["hits"]
	if !ok {
		return page, nil
	}
	var hits []json.RawMessage
	if err := json.Unmarshal(raw, &hits); err != nil {
		return page, nil
	}

	page.Hits = make([]model.JobAd, 0, len(hits))
	for i, hit := range hits {
		if !isObject(hit) {
			return model.Page{}, fmt.Errorf("hit %d is not a JSON object", i)
		}
		ad, err := model.NewJobAd(hit)
		if err != nil {
			return model.Page{}, fmt.Errorf("hit %d: %w", i, err)
		}
		page.Hits = append(page.Hits, ad)
	}
	return page, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
