package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/common"
)

const (
	loginPath   = "/api/auth/login"
	refreshPath = "/api/auth/refresh"
	logoutPath  = "/api/auth/logout"
	mePath      = "/api/auth/me"
)

// HTTPClient talks JSON to the Guardline identity API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs a client for the given base URL. The timeout
// applies per request; pass 0 to rely on caller contexts only.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RememberMe    bool   `json:"remember_me"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (*AuthResult, error) {
	body := loginRequest{
		Email:         creds.Email,
		Password:      string(creds.Password),
		RememberMe:    creds.RememberMe,
		TwoFactorCode: creds.TwoFactorCode,
	}

	resp, err := c.do(ctx, http.MethodPost, loginPath, "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapLoginError(resp)
	}
	return decodeAuthResult(resp)
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	resp, err := c.do(ctx, http.MethodPost, refreshPath, "", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeAuthResult(resp)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, common.ErrSessionExpired
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, common.ErrUnavailable
	default:
		return nil, unexpectedStatus(resp)
	}
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	resp, err := c.do(ctx, http.MethodPost, logoutPath, accessToken, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return common.ErrUnavailable
	}
	return unexpectedStatus(resp)
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*models.User, error) {
	resp, err := c.do(ctx, http.MethodGet, mePath, accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var user models.User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		return &user, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, common.ErrSessionExpired
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, common.ErrUnavailable
	default:
		return nil, unexpectedStatus(resp)
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do builds and performs a request. Transport-level failures map to
// ErrUnavailable so callers can distinguish "server said no" from "server
// never answered".
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return resp, nil
}

// mapLoginError translates login rejections into sentinels. The backend
// reuses status codes across conditions, so the X-Requires-2FA header and
// the error detail disambiguate.
func (c *HTTPClient) mapLoginError(resp *http.Response) error {
	detail := readDetail(resp)

	switch resp.StatusCode {
	case http.StatusForbidden:
		if strings.EqualFold(resp.Header.Get(common.RequiresTwoFactorHeaderName), "true") {
			return common.ErrTwoFactorRequired
		}
		return common.ErrAccountInactive
	case http.StatusUnauthorized:
		if strings.Contains(strings.ToLower(detail), "two-factor") {
			return common.ErrInvalidTwoFactorCode
		}
		return common.ErrInvalidCredentials
	case http.StatusLocked, http.StatusTooManyRequests:
		return common.ErrAccountLocked
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return common.ErrUnavailable
	}
	return unexpectedStatus(resp)
}

func decodeAuthResult(resp *http.Response) (*AuthResult, error) {
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &AuthResult{
		Tokens: models.TokenPair{
			AccessToken:  tr.AccessToken,
			RefreshToken: tr.RefreshToken,
			TokenType:    tr.TokenType,
			ExpiresIn:    tr.ExpiresIn,
			IssuedAt:     time.Now(),
		},
		User: tr.User,
	}, nil
}

func readDetail(resp *http.Response) string {
	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)
	return er.Detail
}

func unexpectedStatus(resp *http.Response) error {
	return fmt.Errorf("identity api: unexpected status %d", resp.StatusCode)
}
