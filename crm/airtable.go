package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DEFAULT_BASE_URL = "https://api.airtable.com/v0"

// Lead is the contact captured by the assistant. Phone is expected to
// include the country code.
type Lead struct {
	Name  string
	Phone string
}

// https://airtable.com/developers/web/api/create-records
type createRecordsRequest struct {
	Records []record `json:"records"`
}

type record struct {
	Fields leadFields `json:"fields"`
}

type leadFields struct {
	Name  string `json:"Name"`
	Phone string `json:"Phone"`
}

type Client struct {
	BaseURL    string
	APIKey     string
	BaseID     string
	Table      string
	HTTPClient *http.Client
}

func NewClient(apiKey, baseID, table string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    DEFAULT_BASE_URL,
		APIKey:     apiKey,
		BaseID:     baseID,
		Table:      table,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// RecordLead creates one record in the leads table and returns the raw
// Airtable response. It is not retried.
func (c *Client) RecordLead(ctx context.Context, lead Lead) (json.RawMessage, error) {
	reqData := createRecordsRequest{
		Records: []record{{Fields: leadFields{Name: lead.Name, Phone: lead.Phone}}},
	}
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("marshalling lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	addHeaders(req, c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Println("Failed to create lead: ", err)
		return nil, fmt.Errorf("posting lead: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading airtable response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Failed to create lead: %s\n", string(body))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("airtable returned invalid json: %q", string(body))
	}

	log.Println("Lead created successfully.")
	return json.RawMessage(body), nil
}

func (c *Client) tableURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + url.PathEscape(c.BaseID) + "/" + url.PathEscape(c.Table)
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable returned status %d: %s", e.StatusCode, e.Body)
}

func addHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	// older setups stored the key with the Bearer prefix already on it
	if strings.HasPrefix(apiKey, "Bearer ") {
		req.Header.Set("Authorization", apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
}
