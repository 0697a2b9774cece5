package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ObjectResolver maps a build identifier to its storage object reference.
// A nil reference with nil error means the build is unknown.
type ObjectResolver interface {
	Resolve(ctx context.Context, buildID string) (*ObjectReference, error)
}

// RegistryConfig holds build registry client configuration.
type RegistryConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RegistryClient resolves build identifiers against the external build
// registry over HTTP with retries.
type RegistryClient struct {
	base   string
	client *retryablehttp.Client
}

// NewRegistryClient creates a registry client.
func NewRegistryClient(cfg RegistryConfig) *RegistryClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil
	return &RegistryClient{base: cfg.BaseURL, client: client}
}

type registryResponse struct {
	StorageKey     string `json:"storage_key"`
	OwnerProjectID string `json:"owner_project_id"`
	OwnerUserID    string `json:"owner_user_id"`
}

// Resolve looks up the build's object reference. 404 means unknown build;
// any transport or server failure is an upstream error distinct from
// not-found.
func (r *RegistryClient) Resolve(ctx context.Context, buildID string) (*ObjectReference, error) {
	url := fmt.Sprintf("%s/builds/%s/object", r.base, buildID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("build registry lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Parsed below.
	case http.StatusNotFound:
		return nil, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("build registry returned %d", resp.StatusCode)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("build registry response: %w", err)
	}
	return &ObjectReference{
		StorageKey:     body.StorageKey,
		OwnerProjectID: body.OwnerProjectID,
		OwnerUserID:    body.OwnerUserID,
	}, nil
}
