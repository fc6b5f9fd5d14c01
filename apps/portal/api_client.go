package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxAPIResponseBytes = 64 << 10

// accountAPI is the backend surface the portal pages call.
type accountAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password string) (string, error)
	SubmitReport(ctx context.Context, report reportFields) (string, error)
}

// apiRejection is a non-2xx answer from the backend. Message is the server's
// own message and may be empty.
type apiRejection struct {
	Status  int
	Message string
}

func (e *apiRejection) Error() string {
	return fmt.Sprintf("api rejected request (%d): %s", e.Status, e.Message)
}

type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(baseURL string, client *http.Client) *apiClient {
	return &apiClient{baseURL: baseURL, client: client}
}

func (c *apiClient) Login(ctx context.Context, email, password string) (string, error) {
	return c.postJSON(ctx, "/api/login", map[string]string{"email": email, "password": password})
}

func (c *apiClient) Register(ctx context.Context, email, password string) (string, error) {
	return c.postJSON(ctx, "/api/register", map[string]string{"email": email, "password": password})
}

func (c *apiClient) SubmitReport(ctx context.Context, report reportFields) (string, error) {
	return c.postJSON(ctx, "/api/submit-form", map[string]string{
		"name":        report.Name,
		"email":       report.Email,
		"category":    report.Category,
		"date":        report.Date,
		"time":        report.Time,
		"location":    report.Location,
		"reason":      report.Reason,
		"description": report.Description,
	})
}

func (c *apiClient) postJSON(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data struct {
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", err
	}
	// Error bodies without JSON still count as rejections.
	decodeErr := json.Unmarshal(raw, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apiRejection{Status: resp.StatusCode, Message: data.Message}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode %s response: %w", path, decodeErr)
	}
	return data.Message, nil
}
