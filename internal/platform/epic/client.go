// Package epic is a client for the Epic FHIR R4 API. When no base URL is
// configured it runs in mock mode, serving deterministic sandbox data so the
// import pipeline can be exercised without Epic connectivity.
package epic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Client talks to an Epic FHIR endpoint, or serves mock data when baseURL is
// empty.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	logger     zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates an Epic client. An empty baseURL enables mock mode.
func NewClient(baseURL, clientID string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Mock reports whether the client serves sandbox data instead of calling Epic.
func (c *Client) Mock() bool {
	return c.baseURL == ""
}

// Token returns a cached OAuth access token, fetching a new one when expired.
// Mock mode returns a fixed token.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.Mock() {
		return "mock-epic-token", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch epic token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("epic token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return c.token, nil
}

// FetchAll gathers Patient, Encounter, Condition, MedicationRequest, and
// Observation resources for a patient concurrently and returns them as a
// single FHIR Bundle document.
func (c *Client) FetchAll(ctx context.Context, patientID string) ([]byte, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	var (
		patient     json.RawMessage
		encounters  []json.RawMessage
		conditions  []json.RawMessage
		medications []json.RawMessage
		observation []json.RawMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		patient, err = c.fetchPatient(gctx, token, patientID)
		return err
	})
	g.Go(func() error {
		var err error
		encounters, err = c.search(gctx, token, "Encounter", patientID)
		return err
	})
	g.Go(func() error {
		var err error
		conditions, err = c.search(gctx, token, "Condition", patientID)
		return err
	})
	g.Go(func() error {
		var err error
		medications, err = c.search(gctx, token, "MedicationRequest", patientID)
		return err
	})
	g.Go(func() error {
		var err error
		observation, err = c.search(gctx, token, "Observation", patientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []map[string]json.RawMessage
	entries = append(entries, map[string]json.RawMessage{"resource": patient})
	for _, group := range [][]json.RawMessage{encounters, conditions, medications, observation} {
		for _, res := range group {
			entries = append(entries, map[string]json.RawMessage{"resource": res})
		}
	}

	bundle := map[string]interface{}{
		"resourceType": "Bundle",
		"type":         "collection",
		"entry":        entries,
	}
	out, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	return out, nil
}

func (c *Client) fetchPatient(ctx context.Context, token, patientID string) (json.RawMessage, error) {
	if c.Mock() {
		return mockPatient(patientID), nil
	}
	return c.get(ctx, token, fmt.Sprintf("%s/Patient/%s", c.baseURL, patientID))
}

// search queries a resource type scoped to a patient and returns the entry
// resources. Mock mode returns the sandbox set for the type.
func (c *Client) search(ctx context.Context, token, resourceType, patientID string) ([]json.RawMessage, error) {
	if c.Mock() {
		return mockSearch(resourceType, patientID), nil
	}

	raw, err := c.get(ctx, token, fmt.Sprintf("%s/%s?patient=%s", c.baseURL, resourceType, url.QueryEscape(patientID)))
	if err != nil {
		return nil, err
	}

	var bundle struct {
		Entry []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decode %s bundle: %w", resourceType, err)
	}

	resources := make([]json.RawMessage, 0, len(bundle.Entry))
	for _, e := range bundle.Entry {
		resources = append(resources, e.Resource)
	}
	return resources, nil
}

func (c *Client) get(ctx context.Context, token, rawURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call epic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("epic returned status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read epic response: %w", err)
	}
	return body, nil
}
