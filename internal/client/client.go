// Package client is the Go client for the inventory service API. The
// verification CLI drives its walks through it, and it implements the
// room persistence interface the verification session expects.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gulaghaa/SDP/internal/model"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to one inventory service instance. A zero token means
// unauthenticated; Login fills it in.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithToken sets a bearer token obtained elsewhere.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token, empty before Login.
func (c *Client) Token() string { return c.token }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login authenticates and stores the returned token for later calls.
// The user's role is returned so callers can gate admin features.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Role, nil
}

// Logout revokes the current token server-side and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// ChangePassword updates the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPut, "/auth/password", body, nil)
}

// Rooms fetches all rooms.
func (c *Client) Rooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Room fetches a single room by ID.
func (c *Client) Room(ctx context.Context, id string) (model.Room, error) {
	var room model.Room
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(id), nil, &room)
	return room, err
}

// CreateRoom registers a new room and returns it as stored.
func (c *Client) CreateRoom(ctx context.Context, room model.Room) (model.Room, error) {
	var created model.Room
	err := c.do(ctx, http.MethodPost, "/rooms", room, &created)
	return created, err
}

// UpdateRoom replaces a room document wholesale. Verification sessions
// persist through this.
func (c *Client) UpdateRoom(ctx context.Context, room model.Room) error {
	return c.do(ctx, http.MethodPut, "/rooms/"+url.PathEscape(room.ID), room, nil)
}

// DeleteRoom removes a room and returns the server's confirmation message.
func (c *Client) DeleteRoom(ctx context.Context, id string) (string, error) {
	var resp map[string]string
	err := c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(id), nil, &resp)
	return resp["message"], err
}

// AddInventoryItem appends one item to a room's inventory and returns it
// as stored, with its assigned ID.
func (c *Client) AddInventoryItem(ctx context.Context, roomID string, item model.Item) (model.Item, error) {
	var stored model.Item
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/inventory", item, &stored)
	return stored, err
}

// AddMissedItem appends an item to a room's missed list.
func (c *Client) AddMissedItem(ctx context.Context, roomID string, item model.Item) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/missed", item, nil)
}

// ClearMissedItems empties a room's missed list.
func (c *Client) ClearMissedItems(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID)+"/missed", nil, nil)
}

type existsResponse struct {
	Exists bool           `json:"exists"`
	Room   *model.RoomRef `json:"room,omitempty"`
}

// BarcodeExists reports whether any room's inventory already uses the
// barcode, and which room if so.
func (c *Client) BarcodeExists(ctx context.Context, code string) (bool, *model.RoomRef, error) {
	var resp existsResponse
	err := c.do(ctx, http.MethodGet, "/inventory/check-barcode/"+url.PathEscape(code), nil, &resp)
	return resp.Exists, resp.Room, err
}

// RoomIDExists reports whether a room with the given ID is registered.
func (c *Client) RoomIDExists(ctx context.Context, id string) (bool, *model.RoomRef, error) {
	var resp existsResponse
	err := c.do(ctx, http.MethodGet, "/inventory/check-room-id/"+url.PathEscape(id), nil, &resp)
	return resp.Exists, resp.Room, err
}

// do runs one request and decodes the response into target, if non-nil.
// Non-2xx responses come back as *APIError carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
