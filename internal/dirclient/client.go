// Package dirclient talks to the lobby directory HTTP API.
package dirclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/lobbynet/internal/api/apierr"
	"github.com/mcoot/lobbynet/internal/api/request"
	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 30 * time.Second
	tracerName     = "github.com/mcoot/lobbynet/internal/dirclient"
)

// Client is an HTTP client for the directory API
// Once signed in, it acts as a lobby.Directory for that identity.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer

	mu    sync.RWMutex
	token string
}

// Ensure Client implements lobby.Directory
var _ lobby.Directory = (*Client)(nil)

// New creates a new directory client
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// SetToken updates the client's bearer token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do performs a request inside a client span
// Error responses are decoded back into the directory's sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	defer span.End()

	err := c.send(ctx, span, method, path, body, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, span trace.Span, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp apierr.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return apierr.ToError(resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Health checks the directory is reachable
func (c *Client) Health(ctx context.Context) error {
	var resp response.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("directory unhealthy: %s", resp.Status)
	}
	return nil
}

// SignInAnonymously creates an anonymous identity and adopts its token
func (c *Client) SignInAnonymously(ctx context.Context, displayName string) (*response.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/anonymous", request.SignInRequest{DisplayName: displayName})
}

// Register creates a registered identity and adopts its token
func (c *Client) Register(ctx context.Context, username, password, displayName string) (*response.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", request.RegisterRequest{
		Username:    username,
		Password:    password,
		DisplayName: displayName,
	})
}

// Login signs in a registered identity and adopts its token
func (c *Client) Login(ctx context.Context, username, password string) (*response.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", request.LoginRequest{Username: username, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*response.AuthResponse, error) {
	var resp response.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.SessionToken)
	return &resp, nil
}

// Me returns the signed-in identity
func (c *Client) Me(ctx context.Context) (model.Identity, error) {
	var resp response.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return model.Identity{}, err
	}
	return resp.ToModel(), nil
}

// SignOut invalidates the current token
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/signout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) session(ctx context.Context, method, path string, body any) (*model.LobbySession, error) {
	var resp response.Session
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.ToModel(), nil
}

func sessionPath(id model.SessionID, suffix string) string {
	return "/sessions/" + url.PathEscape(string(id)) + suffix
}

func (c *Client) Create(ctx context.Context, req lobby.CreateRequest) (*model.LobbySession, error) {
	return c.session(ctx, http.MethodPost, "/sessions", request.CreateSessionRequest{
		Name:      req.Name,
		Capacity:  req.Capacity,
		IsPrivate: req.IsPrivate,
		HostAddr:  req.HostAddr,
	})
}

func (c *Client) Query(ctx context.Context, filter model.SessionFilter) ([]model.LobbySession, error) {
	path := "/sessions?available_slots_gt=" + strconv.Itoa(filter.AvailableSlotsGreaterThan)

	var resp response.SessionList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	sessions := make([]model.LobbySession, len(resp.Sessions))
	for i, s := range resp.Sessions {
		sessions[i] = *s.ToModel()
	}
	return sessions, nil
}

// Get returns a session by id
func (c *Client) Get(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	return c.session(ctx, http.MethodGet, sessionPath(id, ""), nil)
}

func (c *Client) JoinByCode(ctx context.Context, code model.JoinCode) (*model.LobbySession, error) {
	return c.session(ctx, http.MethodPost, "/sessions/join-by-code", request.JoinByCodeRequest{Code: string(code)})
}

func (c *Client) JoinByID(ctx context.Context, id model.SessionID) (*model.LobbySession, error) {
	return c.session(ctx, http.MethodPost, sessionPath(id, "/join"), nil)
}

func (c *Client) QuickJoin(ctx context.Context) (*model.LobbySession, error) {
	return c.session(ctx, http.MethodPost, "/sessions/quick-join", nil)
}

func (c *Client) Heartbeat(ctx context.Context, id model.SessionID) error {
	return c.do(ctx, http.MethodPost, sessionPath(id, "/heartbeat"), nil, nil)
}

func (c *Client) Delete(ctx context.Context, id model.SessionID) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

func (c *Client) RemoveMember(ctx context.Context, id model.SessionID, identity model.IdentityID) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id, "/members/"+url.PathEscape(string(identity))), nil, nil)
}
