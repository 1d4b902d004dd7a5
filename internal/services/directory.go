package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// Directory answers which users hold a role.
type Directory interface {
	MembersOf(ctx context.Context, role string) ([]string, error)
}

// StaticDirectory is a fixed role map, usually loaded from config.
type StaticDirectory map[string][]string

// MembersOf returns the configured members of role.
func (d StaticDirectory) MembersOf(_ context.Context, role string) ([]string, error) {
	return slices.Clone(d[role]), nil
}

// HTTPDirectory asks an HR directory service over HTTP.
type HTTPDirectory struct {
	url    string
	client *http.Client
}

// NewHTTPDirectory creates a new HTTPDirectory.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		url:    baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

// MembersOf calls GET {url}/roles/{role}/members, which returns a JSON array of user ids.
func (d *HTTPDirectory) MembersOf(ctx context.Context, role string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url+"/roles/"+url.PathEscape(role)+"/members", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get members of %s: status code %d", role, resp.StatusCode)
	}

	var members []string
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return members, nil
}
