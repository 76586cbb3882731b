// Package uwyo fetches atmospheric soundings and the station list from the
// University of Wyoming upper-air archive.
package uwyo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html"

	"github.com/couchcryptid/sounding-data-service/internal/config"
	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// timeParamLayout is the archive's datetime query format.
const timeParamLayout = "2006-01-02 15:04:05"

// Client talks to the external sounding archive. The HTTP client and its
// connection pool are shared by all concurrent fetches in a process, sized
// from the configured concurrency ceiling; a circuit breaker turns a
// misbehaving archive into fast per-timestamp fetch errors instead of a
// pile-up of timed-out requests.
type Client struct {
	soundingsURL string
	stationsURL  string
	userAgent    string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *slog.Logger
}

// NewClient creates an archive client from the service configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	poolSize := 2 * cfg.SoundingsConcurrency
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          poolSize,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sounding-archive",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		soundingsURL: cfg.SoundingsURL,
		stationsURL:  cfg.StationsURL,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// FetchSounding requests the profile for one station and hour.
//
// A 404, or a 200 without a <pre> text block, means no data for that slot and
// returns (nil, nil). Any other non-200 status, and transport failures, are
// fetch errors for the caller to record. The station label comes from the
// page's <h3> heading, falling back to the station code.
func (c *Client) FetchSounding(ctx context.Context, stationCode string, t time.Time) (*domain.SoundingPayload, error) {
	params := url.Values{
		"datetime": {t.UTC().Format(timeParamLayout)},
		"id":       {stationCode},
		"type":     {"TEXT:LIST"},
	}

	body, status, err := c.get(ctx, c.soundingsURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch sounding: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch sounding: HTTP %d", status)
	}

	label, textBlock, found := extractSoundingPage(body)
	if !found {
		return nil, nil
	}
	if label == "" {
		label = stationCode
	}

	payload := domain.ParseSoundingText(textBlock)
	payload.StationName = label
	return &payload, nil
}

// get runs one GET through the circuit breaker and returns the body and
// status. 404 passes through as a non-failure so empty slots never trip the
// breaker.
func (c *Client) get(ctx context.Context, fullURL string) (string, int, error) {
	type fetched struct {
		body   string
		status int
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return fetched{body: string(raw), status: resp.StatusCode}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", 0, fmt.Errorf("archive circuit open: %w", err)
		}
		return "", 0, err
	}
	f := result.(fetched)
	return f.body, f.status, nil
}

// extractSoundingPage pulls the first <h3> heading and the first <pre> block
// out of an archive response. found is false when there is no <pre> block.
func extractSoundingPage(page string) (label, textBlock string, found bool) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", "", false
	}

	var h3, pre *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h3":
				if h3 == nil {
					h3 = n
				}
			case "pre":
				if pre == nil {
					pre = n
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if pre == nil {
		return "", "", false
	}
	if h3 != nil {
		label = strings.TrimSpace(nodeText(h3))
	}
	return label, nodeText(pre), true
}

// nodeText concatenates all text descendants of a node, preserving the
// newlines inside <pre> content.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
