// Package ecfr is a read-only client for the upstream regulatory provider's
// versioner API: part structure, section full text, and version lists.
//
// The upstream is a shared government service, so the client is deliberately
// polite: one request at a time, bounded response sizes, and retries with a
// linearly increasing backoff instead of hammering on failure.
package ecfr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrFetch wraps every transient upstream failure (HTTP error, timeout).
var ErrFetch = errors.New("ecfr: fetch failed")

// StructureNode is one node of the provider's hierarchical table of
// contents: part, subpart, section, or appendix.
type StructureNode struct {
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Identifier string          `json:"identifier"`
	Children   []StructureNode `json:"children,omitempty"`
}

// Version is one entry of the provider's version list for a part.
type Version struct {
	Identifier    string `json:"identifier"`
	AmendmentDate string `json:"amendment_date"`
	EffectiveDate string `json:"effective_date"`
	IssueDate     string `json:"issue_date"`
	Substantive   bool   `json:"substantive"`
	Removed       bool   `json:"removed"`
}

// Config configures the client.
type Config struct {
	// BaseURL of the provider API. Default: https://www.ecfr.gov.
	BaseURL string
	// Title is the CFR title number all requests are scoped to. Default: 49.
	Title int
	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration
	// Attempts is the maximum number of tries per request. Default: 5.
	Attempts int
	// Backoff is the base delay; attempt N waits N×Backoff. Default: 800ms.
	Backoff time.Duration
	// MaxBytes caps the response body size. Default: 30MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.ecfr.gov"
	}
	if c.Title <= 0 {
		c.Title = 49
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.Backoff <= 0 {
		c.Backoff = 800 * time.Millisecond
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 30 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "regref/1.0"
	}
}

// Client fetches from the provider with retry and backoff.
type Client struct {
	client *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Structure fetches the current table of contents for a part: the part node
// with its subpart, section, and appendix descendants.
func (c *Client) Structure(ctx context.Context, part string) (*StructureNode, error) {
	u := fmt.Sprintf("%s/api/versioner/v1/structure/current/title-%d.json",
		c.config.BaseURL, c.config.Title)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var root StructureNode
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("ecfr: decode structure: %w", err)
	}
	if node := findPart(&root, part); node != nil {
		return node, nil
	}
	return nil, fmt.Errorf("ecfr: part %s not found in title %d structure", part, c.config.Title)
}

// SectionXML fetches one section's raw legal markup as of a date
// (YYYY-MM-DD).
func (c *Client) SectionXML(ctx context.Context, date, part, section string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/versioner/v1/full/%s/title-%d.xml?part=%s&section=%s",
		c.config.BaseURL, url.PathEscape(date), c.config.Title,
		url.QueryEscape(part), url.QueryEscape(section))
	return c.get(ctx, u)
}

// Versions fetches the authoritative version list for a part.
func (c *Client) Versions(ctx context.Context, part string) ([]Version, error) {
	u := fmt.Sprintf("%s/api/versioner/v1/versions/title-%d.json?part=%s",
		c.config.BaseURL, c.config.Title, url.QueryEscape(part))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var payload struct {
		ContentVersions []Version `json:"content_versions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ecfr: decode versions: %w", err)
	}
	return payload.ContentVersions, nil
}

// get performs a GET with up to Attempts tries. Attempt N is preceded by a
// (N-1)×Backoff wait, honoring ctx during the wait.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.config.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.config.Backoff):
			}
		}
		body, err := c.doGet(ctx, u)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("ecfr: request failed", "url", u, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("%w: %d attempts: %v", ErrFetch, c.config.Attempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json, application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
}

// findPart locates the part node in a title structure tree.
func findPart(n *StructureNode, part string) *StructureNode {
	if n.Type == "part" && n.Identifier == part {
		return n
	}
	for i := range n.Children {
		if found := findPart(&n.Children[i], part); found != nil {
			return found
		}
	}
	return nil
}
