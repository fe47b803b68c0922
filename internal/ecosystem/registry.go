package ecosystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

// Registry fetches API-availability data from an external source.
type Registry interface {
	Fetch(ctx context.Context) ([]model.EcosystemRelease, error)
}

// HTTPRegistry fetches a JSON array of releases from a configured
// endpoint. The shape is intentionally loose: the pipeline doesn't
// control this external service's schema.
type HTTPRegistry struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPRegistry(endpoint string, client *http.Client) *HTTPRegistry {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRegistry{Endpoint: endpoint, Client: client}
}

type registryEntry struct {
	Vendor              string     `json:"vendor"`
	Model               string     `json:"model"`
	APIAvailabilityDate *time.Time `json:"api_availability_date"`
}

func (r *HTTPRegistry) Fetch(ctx context.Context) ([]model.EcosystemRelease, error) {
	if r.Endpoint == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("external registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var entries []registryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse external registry response: %w", err)
	}

	out := make([]model.EcosystemRelease, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.EcosystemRelease{
			Vendor:          e.Vendor,
			ModelName:       e.Model,
			APIAvailability: e.APIAvailabilityDate,
			Confidence:      1.0,
			Source:          model.EcosystemSourceExternal,
		})
	}
	return out, nil
}
