package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxPDFBytes = 10 << 20

type reportService interface {
	GeneratePDF(ctx context.Context, report reportFields) ([]byte, error)
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

type reportServiceClient struct {
	baseURL string
	client  *http.Client
}

func newReportServiceClient(baseURL string, client *http.Client) *reportServiceClient {
	return &reportServiceClient{baseURL: baseURL, client: client}
}

func (c *reportServiceClient) GeneratePDF(ctx context.Context, report reportFields) ([]byte, error) {
	form := url.Values{}
	form.Set("complaint", report.Description)
	form.Set("name", report.Name)
	form.Set("email", report.Email)
	form.Set("date", report.Date)
	form.Set("time", report.Time)
	form.Set("location", report.Location)
	form.Set("reason", report.Reason)
	form.Set("category", report.Category)

	resp, err := c.postForm(ctx, "/generate-pdf", form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("report service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		return nil, fmt.Errorf("report service returned %d bytes that are not a PDF", len(pdf))
	}
	return pdf, nil
}

func (c *reportServiceClient) Chat(ctx context.Context, sessionID, message string) (string, error) {
	form := url.Values{}
	form.Set("msg", message)
	if sessionID != "" {
		form.Set("session", sessionID)
	}

	resp, err := c.postForm(ctx, "/chat", form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat error: %d", resp.StatusCode)
	}

	var data struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAPIResponseBytes)).Decode(&data); err != nil {
		return "", err
	}
	return data.Response, nil
}

func (c *reportServiceClient) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.client.Do(req)
}
