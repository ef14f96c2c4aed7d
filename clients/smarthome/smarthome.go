// Package smarthome executes device directives against a Home Assistant
// compatible REST API.
package smarthome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assistant-voice-pipeline/sentence"
)

const defaultTimeout = 5 * time.Second

type Config struct {
	// BaseURL is the Home Assistant root, for example http://homeassistant.local:8123.
	BaseURL string

	// Token is a long-lived access token.
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
	switch d.Command {
	case "turn_on", "turn_off", "toggle", "brightness":
		return true
	}

	return false
}

// Execute runs one device directive and returns a human readable status. The
// target is a Home Assistant entity id without the domain prefix, which is
// assumed to be light for brightness and resolved per command otherwise.
func (c *Client) Execute(ctx context.Context, d sentence.Directive) (string, error) {
	entity := entityID(d.Target)

	switch d.Command {
	case "turn_on", "turn_off", "toggle":
		err := c.callService(ctx, "homeassistant", d.Command, map[string]any{
			"entity_id": entity,
		})
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s %s", strings.ReplaceAll(d.Command, "_", " "), entity), nil

	case "brightness":
		pct, err := strconv.Atoi(d.Param)
		if err != nil || pct < 0 || pct > 100 {
			return "", fmt.Errorf("smarthome: bad brightness %q", d.Param)
		}

		err = c.callService(ctx, "light", "turn_on", map[string]any{
			"entity_id":      entity,
			"brightness_pct": pct,
		})
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("set %s brightness to %d%%", entity, pct), nil
	}

	return "", fmt.Errorf("smarthome: unknown command %q", d.Command)
}

func (c *Client) callService(ctx context.Context, domain, service string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("smarthome: %w", err)
	}

	url := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, service)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("smarthome: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("smarthome: %s/%s: %w", domain, service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("smarthome: %s/%s: status %d: %s", domain, service, resp.StatusCode, detail)
	}

	return nil
}

// entityID maps a bare directive target onto a light entity id. Targets that
// already carry a domain pass through untouched.
func entityID(target string) string {
	if strings.Contains(target, ".") {
		return target
	}

	return "light." + target
}
