package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Role is a normalized caller role. The roster service historically returned
// roles in several shapes (array, singular field, role string); this client
// normalizes them once so nothing downstream sees the format ambiguity.
type Role string

const (
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// RoleSet is the resolved set of roles for one user.
type RoleSet map[Role]bool

func (rs RoleSet) Has(r Role) bool { return rs[r] }

type Client interface {
	GetUserRoles(ctx context.Context, userID string) (RoleSet, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("roster %s %s: %d %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}

// userPayload tolerates the three role shapes the roster service has shipped
// over time.
type userPayload struct {
	Roles   []string `json:"roles,omitempty"`
	Role    string   `json:"role,omitempty"`
	IsAdmin bool     `json:"is_admin,omitempty"`
}

func (c *HTTPClient) GetUserRoles(ctx context.Context, userID string) (RoleSet, error) {
	data, err := c.doReq(ctx, "GET", "/users/"+userID)
	if err != nil {
		return nil, err
	}
	var p userPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return normalize(p), nil
}

func normalize(p userPayload) RoleSet {
	rs := make(RoleSet)
	for _, r := range p.Roles {
		addRole(rs, r)
	}
	if p.Role != "" {
		addRole(rs, p.Role)
	}
	if p.IsAdmin {
		rs[RoleAdmin] = true
	}
	if len(rs) == 0 {
		rs[RoleParent] = true
	}
	return rs
}

func addRole(rs RoleSet, raw string) {
	switch Role(raw) {
	case RoleParent, RoleTeacher, RoleAdmin:
		rs[Role(raw)] = true
	}
}
