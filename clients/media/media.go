// Package media executes playback directives against a Spotify compatible
// player API.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"assistant-voice-pipeline/sentence"
)

const defaultTimeout = 5 * time.Second

type Config struct {
	// BaseURL is the player API root, for example https://api.spotify.com/v1.
	BaseURL string

	// Token is an OAuth bearer token with playback scope.
	Token string

	Timeout time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is empty")
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Handles reports whether the directive belongs to this client.
func (c *Client) Handles(d sentence.Directive) bool {
	return strings.HasPrefix(d.Command, "spotify_")
}

// Execute runs one playback directive and returns a human readable status.
// The directive target names the player and is unused by this API, which
// always addresses the active device.
func (c *Client) Execute(ctx context.Context, d sentence.Directive) (string, error) {
	switch d.Command {
	case "spotify_play", "spotify_resume":
		return "playback resumed", c.call(ctx, http.MethodPut, "/me/player/play", nil)

	case "spotify_pause":
		return "playback paused", c.call(ctx, http.MethodPut, "/me/player/pause", nil)

	case "spotify_next", "spotify_skip":
		return "skipped to the next track", c.call(ctx, http.MethodPost, "/me/player/next", nil)

	case "spotify_previous":
		return "back to the previous track", c.call(ctx, http.MethodPost, "/me/player/previous", nil)

	case "spotify_queue":
		if d.Param == "" {
			return "", fmt.Errorf("media: queue needs a track uri")
		}

		query := url.Values{"uri": []string{d.Param}}

		return "queued " + d.Param, c.call(ctx, http.MethodPost, "/me/player/queue?"+query.Encode(), nil)

	case "spotify_volume":
		pct, err := strconv.Atoi(d.Param)
		if err != nil || pct < 0 || pct > 100 {
			return "", fmt.Errorf("media: bad volume %q", d.Param)
		}

		query := url.Values{"volume_percent": []string{strconv.Itoa(pct)}}

		return fmt.Sprintf("volume set to %d%%", pct),
			c.call(ctx, http.MethodPut, "/me/player/volume?"+query.Encode(), nil)
	}

	return "", fmt.Errorf("media: unknown command %q", d.Command)
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("media: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("media: %s: status %d: %s", path, resp.StatusCode, detail)
	}

	return nil
}
