package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// APIClient handles HTTP communication with the backend. Each client keeps
// its own cookie jar, so it behaves like one browser or one device.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	jar, _ := cookiejar.New(nil)
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type SessionResponse struct {
	User      User     `json:"user"`
	State     string   `json:"state"`
	CompanyID *string  `json:"companyId"`
	Role      string   `json:"role"`
	Company   *Company `json:"company"`
}

type Member struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Device struct {
	ID       string    `json:"id"`
	UID      string    `json:"uid"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
	IsActive bool      `json:"isActive"`
}

type QuotaUsage struct {
	ActiveUsers     int64 `json:"activeUsers"`
	MaxUsers        int   `json:"maxUsers"`
	UsedBytes       int64 `json:"usedBytes"`
	MaxStorageBytes int64 `json:"maxStorageBytes"`
}

// RegisterCompany redeems a license token and logs in as the new owner
func (c *APIClient) RegisterCompany(token, companyName, email, password string) (*SessionResponse, error) {
	body := map[string]string{
		"token":       token,
		"companyName": companyName,
		"email":       email,
		"password":    password,
		"name":        companyName + " Owner",
	}

	var result SessionResponse
	if err := c.do(http.MethodPost, "/auth/register-company", body, http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("register company: %w", err)
	}
	return &result, nil
}

// Login starts a session for the client
func (c *APIClient) Login(email, password string) (*SessionResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var result SessionResponse
	if err := c.do(http.MethodPost, "/auth/login", body, http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &result, nil
}

// SelectCompany binds the client's session to a company
func (c *APIClient) SelectCompany(companyID string) error {
	body := map[string]string{"companyId": companyID}
	if err := c.do(http.MethodPost, "/companies/select", body, http.StatusOK, nil); err != nil {
		return fmt.Errorf("select company: %w", err)
	}
	return nil
}

// AddMember adds a user to the selected company
func (c *APIClient) AddMember(email, password, role string) (*Member, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
		"role":     role,
	}

	var member Member
	if err := c.do(http.MethodPost, "/company/members", body, http.StatusCreated, &member); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return &member, nil
}

// Usage fetches the selected company's quota usage
func (c *APIClient) Usage() (*QuotaUsage, error) {
	var usage QuotaUsage
	if err := c.do(http.MethodGet, "/company/license", nil, http.StatusOK, &usage); err != nil {
		return nil, fmt.Errorf("usage: %w", err)
	}
	return &usage, nil
}

// Heartbeat registers a device or refreshes its last-seen time
func (c *APIClient) Heartbeat(uid, name string, info map[string]interface{}) (*Device, error) {
	body := map[string]interface{}{
		"uid":        uid,
		"name":       name,
		"deviceInfo": info,
	}

	var device Device
	if err := c.do(http.MethodPost, "/devices", body, http.StatusOK, &device); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	return &device, nil
}

// HTTP helpers

func (c *APIClient) do(method, path string, body interface{}, wantStatus int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
