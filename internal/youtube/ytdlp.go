// Package youtube shells out to yt-dlp for candidate search and audio
// retrieval.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/time/rate"

	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/logger"
)

// runFunc executes the yt-dlp binary and returns its stdout. Swappable in
// tests.
type runFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

func execRun(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s: %s", binary, msg)
	}
	return stdout.Bytes(), nil
}

// Client drives a yt-dlp binary. Searches are rate limited so batch runs do
// not hammer the backend.
type Client struct {
	binary  string
	limiter *rate.Limiter
	log     *logger.Logger
	run     runFunc
}

// NewClient builds a yt-dlp client around the given binary path. An empty
// path falls back to looking up yt-dlp on PATH.
func NewClient(binary string, log *logger.Logger) *Client {
	if binary == "" {
		binary = constants.DefaultYTDLPBinary
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		binary:  binary,
		limiter: rate.NewLimiter(rate.Every(constants.DefaultSearchRate), 1),
		log:     log.WithComponent("youtube"),
		run:     execRun,
	}
}

// Available reports whether the configured binary can be found.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

type searchEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	ViewCount int64   `json:"view_count"`
}

type searchResult struct {
	Entries []*searchEntry `json:"entries"`
}

func parseSearchOutput(out []byte) ([]domain.CandidateResult, error) {
	var result searchResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search output: %w", err)
	}

	candidates := make([]domain.CandidateResult, 0, len(result.Entries))
	for _, e := range result.Entries {
		if e == nil || e.ID == "" {
			continue
		}
		uploader := e.Channel
		if uploader == "" {
			uploader = e.Uploader
		}
		candidates = append(candidates, domain.CandidateResult{
			SourceID:  e.ID,
			Title:     e.Title,
			Uploader:  uploader,
			Duration:  int(e.Duration),
			ViewCount: e.ViewCount,
		})
	}
	return candidates, nil
}

// Search queries for up to limit candidates matching the query. An empty
// result is not an error; callers decide how to treat it.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.CandidateResult, error) {
	if limit <= 0 {
		limit = constants.DefaultSearchLimit
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := fmt.Sprintf("ytsearch%d:%s", limit, query)
	out, err := c.run(ctx, c.binary,
		"-J",
		"--flat-playlist",
		"--no-warnings",
		"--ignore-errors",
		target,
	)
	if err != nil {
		return nil, fmt.Errorf("search failed for %q: %w", query, err)
	}

	candidates, err := parseSearchOutput(out)
	if err != nil {
		return nil, fmt.Errorf("search failed for %q: %w", query, err)
	}
	c.log.Debug("Search completed", "query", query, "candidates", len(candidates))
	return candidates, nil
}

// Fetch downloads the audio for sourceID, extracting it to the requested
// format. destBase is the output path without extension; the returned path
// carries the format's extension.
func (c *Client) Fetch(ctx context.Context, sourceID, destBase, format, quality string) (string, error) {
	url := "https://www.youtube.com/watch?v=" + sourceID

	args := []string{
		"-x",
		"--audio-format", format,
		"--audio-quality", quality,
		"--no-playlist",
		"--no-warnings",
		"-o", destBase + ".%(ext)s",
		url,
	}
	if _, err := c.run(ctx, c.binary, args...); err != nil {
		return "", fmt.Errorf("download failed for %s: %w", sourceID, err)
	}

	final := destBase + "." + format
	if _, err := os.Stat(final); err != nil {
		return "", fmt.Errorf("download for %s produced no %s file: %w", sourceID, format, err)
	}
	return final, nil
}
