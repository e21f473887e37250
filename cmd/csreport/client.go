package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/itsupport/csreport/internal/config"
	"github.com/itsupport/csreport/internal/transport"
)

// apiClient wraps the primary/fallback transport with the service's JSON
// response envelope.
type apiClient struct {
	tr *transport.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		tr: transport.New(cfg.Client.PrimaryBaseURL, cfg.Client.FallbackBaseURL, cfg.Client.Timeout),
	}, nil
}

func (c *apiClient) get(ctx context.Context, path, rawQuery string) (*transport.Response, error) {
	return c.tr.Do(ctx, http.MethodGet, path, rawQuery, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*transport.Response, error) {
	return c.tr.Do(ctx, http.MethodPost, path, "", body)
}

// envelope is the common wrapper around every JSON response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeJSON unwraps the response envelope and, when v is non-nil, decodes
// the data payload into it.
func decodeJSON(resp *transport.Response, v any) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return envelope{}, fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return env, fmt.Errorf("server rejected request: %s", env.Message)
	}
	if v != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return env, fmt.Errorf("decoding response data: %w", err)
		}
	}
	return env, nil
}

func codeQuery(code string) string {
	return url.Values{"code": {code}}.Encode()
}
