// ABOUTME: Ownership oracle client: who currently owns a grid position
// ABOUTME: Thin interface over the external token registry, plus a static test double

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

// ErrTokenNotFound is returned when the registry has never minted a token
// for the position.
var ErrTokenNotFound = errors.New("token not found")

// Client answers "who owns this position now". The registry is the source
// of truth; the engine only caches its answers.
type Client interface {
	OwnerOf(ctx context.Context, pos canvas.Position) (string, error)
}

// HTTPClient queries a token registry over HTTP. The registry exposes
// GET {base}/v1/tokens/{token_id}/owner returning {"owner": "..."}.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a registry client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// OwnerOf resolves the current owner of a position from the registry.
func (c *HTTPClient) OwnerOf(ctx context.Context, pos canvas.Position) (string, error) {
	url := fmt.Sprintf("%s/v1/tokens/%s/owner", c.baseURL, pos.TokenID())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building registry request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying registry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrTokenNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var body struct {
		Owner string `json:"owner"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding registry response: %w", err)
	}
	if body.Owner == "" {
		return "", fmt.Errorf("registry returned empty owner for %s", pos.TokenID())
	}
	return body.Owner, nil
}

// Static is an in-memory oracle for tests and local development.
type Static struct {
	mu     sync.RWMutex
	owners map[canvas.Position]string
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{owners: make(map[canvas.Position]string)}
}

// SetOwner records an owner for a position.
func (s *Static) SetOwner(pos canvas.Position, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[pos] = owner
}

// OwnerOf returns the recorded owner, or ErrTokenNotFound.
func (s *Static) OwnerOf(_ context.Context, pos canvas.Position) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[pos]
	if !ok {
		return "", ErrTokenNotFound
	}
	return owner, nil
}

// Ensure both implementations satisfy the Client interface.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*Static)(nil)
)
