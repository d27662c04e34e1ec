// Package api is the REST client for the GChat service. Every call takes
// a context and returns decoded JSON; authentication is a bearer token
// passed as a query parameter or body field, the way the deployed server
// expects it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gchat/internal/protocol"
	"gchat/internal/token"
)

// DefaultBase is the deployed API endpoint.
const DefaultBase = "https://api.gchat.cloud"

// ErrUnauthorized covers 401 responses: missing/expired token or a wrong
// temp chat password. Not retried automatically.
var ErrUnauthorized = errors.New("api: unauthorized")

// StatusError is any other non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
}

type Client struct {
	base  string
	http  *http.Client
	creds token.Provider
}

// New builds a client against base (DefaultBase when empty). creds may be
// nil for the endpoints that do not require a token.
func New(base string, creds token.Provider) *Client {
	if base == "" {
		base = DefaultBase
	}
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		http:  &http.Client{Timeout: 15 * time.Second},
		creds: creds,
	}
}

func (c *Client) token() (string, error) {
	if c.creds == nil {
		return "", token.ErrNoToken
	}
	return c.creds.Token()
}

// Ping checks service reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	form := url.Values{"username": {username}, "password": {password}}
	if err := c.postForm(ctx, "/user/login", form, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	form := url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	}
	if err := c.postForm(ctx, "/user/register", form, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// CheckToken asks the server whether the stored token is still valid.
func (c *Client) CheckToken(ctx context.Context) (bool, error) {
	tok, err := c.token()
	if err != nil {
		return false, err
	}
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.getJSON(ctx, "/user/check-token", url.Values{"token": {tok}}, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

func (c *Client) UserInfo(ctx context.Context) (User, error) {
	tok, err := c.token()
	if err != nil {
		return User{}, err
	}
	var out User
	err = c.getJSON(ctx, "/user/get-user-info", url.Values{"token": {tok}}, &out)
	return out, err
}

func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var out []Group
	err = c.getJSON(ctx, "/group/get", url.Values{"token": {tok}}, &out)
	return out, err
}

func (c *Client) GroupMembers(ctx context.Context, groupID int64) ([]Friend, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var out []Friend
	q := url.Values{"token": {tok}, "group_id": {strconv.FormatInt(groupID, 10)}}
	err = c.getJSON(ctx, "/group/get-users", q, &out)
	return out, err
}

// GroupMessages fetches the historical log of a standing group, oldest
// first. Content comes back exactly as stored.
func (c *Client) GroupMessages(ctx context.Context, groupID int64) ([]protocol.Message, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var out []protocol.Message
	q := url.Values{"token": {tok}, "group_id": {strconv.FormatInt(groupID, 10)}}
	err = c.getJSON(ctx, "/group/get-messages", q, &out)
	return out, err
}

func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []int64) (int64, error) {
	tok, err := c.token()
	if err != nil {
		return 0, err
	}
	if memberIDs == nil {
		memberIDs = []int64{}
	}
	body := map[string]any{"token": tok, "group_name": name, "member_ids": memberIDs}
	var out struct {
		GroupID int64 `json:"group_id"`
	}
	if err := c.postJSON(ctx, "/group/create", body, &out); err != nil {
		return 0, err
	}
	return out.GroupID, nil
}

func (c *Client) AddGroupMembers(ctx context.Context, groupID int64, memberIDs []int64) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	body := map[string]any{"token": tok, "group_id": groupID, "new_member_ids": memberIDs}
	return c.postJSON(ctx, "/group/add-users", body, nil)
}

func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	form := url.Values{
		"token":     {tok},
		"group_id":  {strconv.FormatInt(groupID, 10)},
		"remove_id": {strconv.FormatInt(userID, 10)},
	}
	return c.postForm(ctx, "/group/remove-user", form, nil)
}

func (c *Client) EditGroupPicture(ctx context.Context, groupID int64, pictureURL string) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	form := url.Values{
		"token":       {tok},
		"group_id":    {strconv.FormatInt(groupID, 10)},
		"picture_url": {pictureURL},
	}
	return c.doForm(ctx, http.MethodPut, "/group/edit-picture", form, nil)
}

func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var out []Friend
	err = c.getJSON(ctx, "/friend/get", url.Values{"token": {tok}}, &out)
	return out, err
}

func (c *Client) FriendRequests(ctx context.Context) (FriendRequests, error) {
	tok, err := c.token()
	if err != nil {
		return FriendRequests{}, err
	}
	var out FriendRequests
	err = c.getJSON(ctx, "/friend/get-requests", url.Values{"token": {tok}}, &out)
	return out, err
}

func (c *Client) SendFriendRequest(ctx context.Context, username string) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	form := url.Values{"token": {tok}, "receiverUsername": {username}}
	return c.postForm(ctx, "/friend/send-request", form, nil)
}

func (c *Client) AcceptFriendRequest(ctx context.Context, userID int64) error {
	return c.friendAction(ctx, "/friend/accept-request", userID)
}

func (c *Client) CancelFriendRequest(ctx context.Context, userID int64) error {
	return c.friendAction(ctx, "/friend/cancel-request", userID)
}

func (c *Client) DenyFriendRequest(ctx context.Context, userID int64) error {
	return c.friendAction(ctx, "/friend/deny-request", userID)
}

func (c *Client) RemoveFriend(ctx context.Context, userID int64) error {
	return c.friendAction(ctx, "/friend/delete", userID)
}

func (c *Client) friendAction(ctx context.Context, path string, userID int64) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	form := url.Values{"token": {tok}, "userId": {strconv.FormatInt(userID, 10)}}
	return c.postForm(ctx, path, form, nil)
}

func (c *Client) TempGroups(ctx context.Context) ([]TempGroup, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var out []TempGroup
	err = c.getJSON(ctx, "/temp-group/get", url.Values{"token": {tok}}, &out)
	return out, err
}

// CreateTempGroup opens a temp chat that expires at endDate. password may
// be empty for an unprotected chat. Returns the distribution key and the
// backing group id.
func (c *Client) CreateTempGroup(ctx context.Context, name string, endDate time.Time, password string) (TempGroup, error) {
	tok, err := c.token()
	if err != nil {
		return TempGroup{}, err
	}
	body := map[string]any{
		"token":      tok,
		"group_name": name,
		"end_date":   endDate.Format(time.RFC3339),
	}
	if password != "" {
		body["password"] = password
	}
	var out struct {
		ChatKey string `json:"chat_key"`
		GroupID int64  `json:"group_id"`
	}
	if err := c.postJSON(ctx, "/temp-group/create", body, &out); err != nil {
		return TempGroup{}, err
	}
	return TempGroup{GroupID: out.GroupID, Name: name, EndDate: endDate, TempChatKey: out.ChatKey}, nil
}

// TempGroupHasPassword reports whether joining the chat requires a
// password. Expired chats surface as a server error.
func (c *Client) TempGroupHasPassword(ctx context.Context, tempKey string) (bool, error) {
	var out struct {
		HasPassword bool `json:"has_password"`
	}
	err := c.getJSON(ctx, "/temp-group/has-password", url.Values{"temp": {tempKey}}, &out)
	return out.HasPassword, err
}

// TempGroupInfo resolves a distribution key to the backing group. A wrong
// password yields ErrUnauthorized.
func (c *Client) TempGroupInfo(ctx context.Context, tempKey, password string) (TempGroup, error) {
	q := url.Values{"temp": {tempKey}}
	if password != "" {
		q.Set("password", password)
	}
	var out struct {
		ChatKey string    `json:"chat_key"`
		GroupID int64     `json:"group_id"`
		EndDate time.Time `json:"end_date"`
		Name    string    `json:"name"`
	}
	if err := c.getJSON(ctx, "/temp-group/get-group-info", q, &out); err != nil {
		return TempGroup{}, err
	}
	return TempGroup{GroupID: out.GroupID, Name: out.Name, EndDate: out.EndDate, TempChatKey: out.ChatKey}, nil
}

// TempGroupMessages fetches the historical log of a temp chat. No token:
// possession of the key (and password) is the access control.
func (c *Client) TempGroupMessages(ctx context.Context, tempKey, password string) ([]protocol.Message, error) {
	q := url.Values{"temp": {tempKey}}
	if password != "" {
		q.Set("password", password)
	}
	var out []protocol.Message
	err := c.getJSON(ctx, "/temp-group/get-messages", q, &out)
	return out, err
}

// Messages routes the history fetch for any conversation reference.
func (c *Client) Messages(ctx context.Context, conv protocol.Conversation) ([]protocol.Message, error) {
	if conv.Temp() {
		return c.TempGroupMessages(ctx, conv.TempKey, conv.Password)
	}
	return c.GroupMessages(ctx, conv.GroupID)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.doForm(ctx, http.MethodPost, path, form, out)
}

func (c *Client) doForm(ctx context.Context, method, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: serverMessage(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// serverMessage pulls the human-readable field out of an error body; the
// server uses "error" and "message" interchangeably.
func serverMessage(body []byte) string {
	var m struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	if m.Error != "" {
		return m.Error
	}
	return m.Message
}
