package devops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/rs/zerolog/log"
)

// DefaultAPIVersion is appended to passthrough requests that do not carry one.
const DefaultAPIVersion = "7.1"

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

// APIError is returned for non-2xx passthrough responses.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("Azure DevOps authentication failed (%d) for %s. Please check your personal access token.", e.StatusCode, e.Endpoint)
	case http.StatusNotFound:
		return fmt.Sprintf("Azure DevOps resource not found: %s", e.Endpoint)
	case http.StatusTooManyRequests:
		return fmt.Sprintf("Azure DevOps rate limit exceeded (429) for %s", e.Endpoint)
	default:
		return fmt.Sprintf("Azure DevOps API returned status %d for %s", e.StatusCode, e.Endpoint)
	}
}

// IsNotFound reports whether err is a 404 from the passthrough.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// passthrough executes raw GETs against the organization URL.
type passthrough struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func newPassthrough(cfg Config) *passthrough {
	return &passthrough{
		baseURL:    strings.TrimRight(cfg.OrganizationURL, "/"),
		authHeader: azuredevops.CreateBasicAuthHeaderValue("", cfg.Token),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *passthrough) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	params := url.Values{}
	for k, v := range query {
		params[k] = append([]string(nil), v...)
	}
	if params.Get("api-version") == "" {
		params.Set("api-version", DefaultAPIVersion)
	}

	endpoint := fmt.Sprintf("%s/%s?%s", p.baseURL, strings.TrimLeft(path, "/"), params.Encode())
	log.Debug().Str("url", endpoint).Msg("Passthrough GET")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("passthrough GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	return body, nil
}
