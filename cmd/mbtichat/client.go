package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/20223096/mbti-app/internal/config"
)

// apiClient talks to a running `mbtichat serve`.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `mbtichat serve` running? (%w)", err)
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// sessionSummary is the subset of GET /session that `status` prints.
type sessionSummary struct {
	Status struct {
		State     string `json:"state"`
		SessionID string `json:"session_id"`
		Selection struct {
			MBTI              string `json:"mbti"`
			RelationshipType  string `json:"relationship_type"`
			RelationshipState string `json:"relationship_state"`
		} `json:"selection"`
	} `json:"status"`
	Messages []json.RawMessage `json:"messages"`
	Profile  *struct {
		Kind string `json:"type"`
	} `json:"traits_profile"`
}

func fetchSession(ctx context.Context, c *apiClient) (sessionSummary, error) {
	var s sessionSummary
	resp, err := c.get(ctx, "/session")
	if err != nil {
		return s, err
	}
	err = decodeJSON(resp, &s)
	return s, err
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		s, err := fetchSession(cmd.Context(), client)
		if err != nil {
			printStatus("Server", "stopped")
			return nil
		}

		printStatus("Server", "running at %s", client.baseURL)
		printStatus("Session", "%s", s.Status.SessionID)
		printStatus("State", "%s", s.Status.State)
		printStatus("MBTI", "%s", orDash(s.Status.Selection.MBTI))
		printStatus("Relationship", "%s / %s", orDash(s.Status.Selection.RelationshipType), orDash(s.Status.Selection.RelationshipState))
		printStatus("Messages", "%d", len(s.Messages))
		if s.Profile != nil {
			printStatus("Profile", "%s", s.Profile.Kind)
		} else {
			printStatus("Profile", "none")
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
