// Package judge does best-effort metadata enrichment against the public
// APIs of supported judge sites, plus the upcoming-contest feed. Every
// failure path degrades to what can be inferred from the URL alone; nothing
// here ever blocks problem creation.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucas6028/silver-server/config"
	"go.uber.org/zap"
)

// ErrUnsupported is returned for URLs from judges without an integration.
var ErrUnsupported = errors.New("unsupported judge")

// Metadata is what a lookup could recover about a problem. Platform is
// always set (inferred from the URL if nothing else); the rest is optional.
type Metadata struct {
	Title      string   `json:"title,omitempty"`
	Platform   string   `json:"platform"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	URL        string   `json:"url"`
}

// Client talks to the judge APIs.
type Client struct {
	http           *http.Client
	codeforcesBase string
	leetcodeBase   string
	log            *zap.SugaredLogger
}

func NewClient(cfg config.JudgeConfig, log *zap.SugaredLogger) *Client {
	return &Client{
		http:           &http.Client{Timeout: 10 * time.Second},
		codeforcesBase: strings.TrimRight(cfg.CodeforcesBaseURL, "/"),
		leetcodeBase:   strings.TrimRight(cfg.LeetCodeBaseURL, "/"),
		log:            log,
	}
}

// InferPlatform guesses the judge from a URL substring. Unknown hosts map
// to "Other".
func InferPlatform(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "codeforces.com"):
		return "Codeforces"
	case strings.Contains(lower, "leetcode.com"):
		return "LeetCode"
	case strings.Contains(lower, "atcoder.jp"):
		return "AtCoder"
	default:
		return "Other"
	}
}

// Lookup fetches canonical metadata for the problem at url. On any failure
// the returned Metadata still carries the inferred platform and the url;
// the error is advisory only.
func (c *Client) Lookup(ctx context.Context, url string) (Metadata, error) {
	platform := InferPlatform(url)
	degraded := Metadata{Platform: platform, URL: url}

	var (
		meta Metadata
		err  error
	)
	switch platform {
	case "LeetCode":
		meta, err = c.lookupLeetCode(ctx, url)
	case "Codeforces":
		meta, err = c.lookupCodeforces(ctx, url)
	default:
		return degraded, ErrUnsupported
	}
	if err != nil {
		c.log.Debugw("judge lookup degraded", "url", url, "platform", platform, "error", err)
		return degraded, err
	}
	return meta, nil
}

// FormatTimeUntil renders a countdown to a unix start time.
func FormatTimeUntil(startTimeSeconds int64, now time.Time) string {
	if startTimeSeconds == 0 {
		return "TBD"
	}
	secondsLeft := startTimeSeconds - now.Unix()
	if secondsLeft <= 0 {
		return "Starting Soon"
	}

	days := secondsLeft / (3600 * 24)
	hours := (secondsLeft % (3600 * 24)) / 3600
	minutes := (secondsLeft % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", secondsLeft)
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("judge API returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mapTags translates a judge's tag vocabulary into ours via the fixed
// lookup table. Unmapped tags are dropped, never invented.
func mapTags(foreign []string, table map[string]string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, tag := range foreign {
		mapped, ok := table[strings.ToLower(tag)]
		if !ok || seen[mapped] {
			continue
		}
		seen[mapped] = true
		tags = append(tags, mapped)
	}
	return tags
}
