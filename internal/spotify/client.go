// Package spotify resolves playlist links into track records through the
// Spotify Web API using the client-credentials flow.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/httpclient"
	"github.com/dvallejo/tunesync/internal/logger"
)

const (
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIBase  = "https://api.spotify.com/v1"

	pageLimit = 100
)

// linkPatterns match both web URLs (open.spotify.com/playlist/ID) and
// URIs (spotify:playlist:ID).
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`open\.spotify\.com/(playlist|album|track)/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`spotify:(playlist|album|track):([a-zA-Z0-9]+)`),
}

// ParseLink extracts the resource kind and identifier from a Spotify URL or
// URI. It returns false when the input matches neither form.
func ParseLink(link string) (kind, id string, ok bool) {
	for _, p := range linkPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// Playlist is the resolved playlist header plus its track records, in
// playlist order.
type Playlist struct {
	ID     string
	Name   string
	Owner  string
	Total  int
	Tracks []domain.TrackRecord
}

// Client talks to the Spotify Web API. The zero value is not usable; build
// one with NewClient.
type Client struct {
	http     *httpclient.Client
	log      *logger.Logger
	tokenURL string
	apiBase  string

	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Spotify API client authenticating with the
// client-credentials flow.
func NewClient(clientID, clientSecret string, hc *httpclient.Client, log *logger.Logger) *Client {
	if hc == nil {
		hc = httpclient.NewClient(nil, 0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		http:         hc,
		log:          log.WithComponent("spotify"),
		tokenURL:     defaultTokenURL,
		apiBase:      defaultAPIBase,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned status %d", domain.ErrAuth, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response carried no access token", domain.ErrAuth)
	}

	c.accessToken = tok.AccessToken
	// Refresh a minute early so in-flight pagination does not race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	u := c.apiBase + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: api returned status %d for %s", domain.ErrAuth, resp.StatusCode, endpoint)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, endpoint)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, endpoint)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api returned status %d for %s: %s", resp.StatusCode, endpoint, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode api response: %w", err)
	}
	return nil
}

type apiTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	} `json:"album"`
	DurationMS  int `json:"duration_ms"`
	TrackNumber int `json:"track_number"`
	DiscNumber  int `json:"disc_number"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

func (t apiTrack) record() domain.TrackRecord {
	rec := domain.TrackRecord{
		ID:          t.ID,
		Title:       t.Name,
		Album:       t.Album.Name,
		Duration:    t.DurationMS / 1000,
		TrackNumber: t.TrackNumber,
		DiscNumber:  t.DiscNumber,
		ISRC:        t.ExternalIDs.ISRC,
	}
	for _, a := range t.Artists {
		rec.Artists = append(rec.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		rec.ArtworkURL = t.Album.Images[0].URL
	}
	return rec
}

type playlistResponse struct {
	Name  string `json:"name"`
	Owner struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type playlistTracksPage struct {
	Items []struct {
		Track *apiTrack `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

// ResolvePlaylist resolves a playlist URL or URI into its track records.
// Local-only entries (tracks without an identifier) are skipped.
func (c *Client) ResolvePlaylist(ctx context.Context, link string) (*Playlist, error) {
	kind, id, ok := ParseLink(link)
	if !ok {
		return nil, fmt.Errorf("not a spotify link: %q", link)
	}
	if kind != "playlist" {
		return nil, fmt.Errorf("link is a %s, not a playlist: %q", kind, link)
	}

	var header playlistResponse
	if err := c.get(ctx, "/playlists/"+id, nil, &header); err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", id, err)
	}

	pl := &Playlist{
		ID:    id,
		Name:  header.Name,
		Owner: header.Owner.DisplayName,
		Total: header.Tracks.Total,
	}

	offset := 0
	for {
		params := url.Values{
			"offset": {fmt.Sprint(offset)},
			"limit":  {fmt.Sprint(pageLimit)},
		}
		var page playlistTracksPage
		if err := c.get(ctx, "/playlists/"+id+"/tracks", params, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch playlist tracks at offset %d: %w", offset, err)
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			pl.Tracks = append(pl.Tracks, item.Track.record())
		}

		if page.Next == "" {
			break
		}
		offset += pageLimit
	}

	c.log.Info("Resolved playlist",
		"playlist", pl.Name,
		"owner", pl.Owner,
		"tracks", len(pl.Tracks))
	return pl, nil
}
