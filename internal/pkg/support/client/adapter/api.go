package adapter

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

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
)

// Credentials authenticate API and push calls. Token wins; Role and Subject are only sent
// to servers running without JWT_SECRET.
type Credentials struct {
	Token   string
	Role    string
	Subject string
}

// Apply sets the auth headers on h.
func (c Credentials) Apply(h http.Header) {
	switch {
	case c.Token != "":
		h.Set("Authorization", "Bearer "+c.Token)
	case c.Role != "":
		h.Set("X-Support-Role", c.Role)
		h.Set("X-Support-Subject", c.Subject)
	}
}

// StatusError is a non-2xx answer. 409 answers unwrap to client.ErrConflict.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("support api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("support api: status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return client.ErrConflict
	}
	return nil
}

// APIClient implements client.API over the support REST endpoints.
type APIClient struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

func NewAPIClient(baseURL string, creds Credentials, hc *http.Client) *APIClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), creds: creds, http: hc}
}

var _ client.API = (*APIClient)(nil)

func (a *APIClient) InitConversation(ctx context.Context) (string, error) {
	var conv support.Conversation
	if err := a.do(ctx, http.MethodPost, "/conversations", nil, &conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (a *APIClient) GetConversations(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	err := a.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/conversations", nil, &ids)
	return ids, err
}

func (a *APIClient) FetchConversationStatus(ctx context.Context, conversationID string) (client.ConversationStatus, error) {
	var st client.ConversationStatus
	err := a.do(ctx, http.MethodGet, conversationPath(conversationID, "status"), nil, &st)
	return st, err
}

func (a *APIClient) FetchMessagesPaged(ctx context.Context, conversationID string, beforeID int64, size int) (client.Page, error) {
	q := url.Values{}
	if beforeID > 0 {
		q.Set("beforeId", strconv.FormatInt(beforeID, 10))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	path := conversationPath(conversationID, "messages")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page client.Page
	err := a.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

// SendMessage posts the body only; the server derives role and employee from the credentials.
func (a *APIClient) SendMessage(ctx context.Context, req client.SendRequest) (support.Message, error) {
	var msg support.Message
	body := map[string]string{"content": req.Content}
	err := a.do(ctx, http.MethodPost, conversationPath(req.ConversationID, "messages"), body, &msg)
	return msg, err
}

func (a *APIClient) FetchEmployeeConversations(ctx context.Context) ([]support.Conversation, error) {
	var convs []support.Conversation
	err := a.do(ctx, http.MethodGet, "/employee/conversations", nil, &convs)
	return convs, err
}

// ClaimConversation claims for the authenticated employee; employeeID must match the credentials.
func (a *APIClient) ClaimConversation(ctx context.Context, conversationID, _ string) error {
	return a.do(ctx, http.MethodPost, conversationPath(conversationID, "claim"), nil, nil)
}

func (a *APIClient) ReleaseConversation(ctx context.Context, conversationID string, to support.Status) error {
	return a.do(ctx, http.MethodPost, conversationPath(conversationID, "release"), map[string]support.Status{"to": to}, nil)
}

func (a *APIClient) EscalateConversation(ctx context.Context, conversationID string) error {
	return a.do(ctx, http.MethodPost, conversationPath(conversationID, "escalate"), nil, nil)
}

func (a *APIClient) MarkConversationRead(ctx context.Context, conversationID string) error {
	return a.do(ctx, http.MethodPost, conversationPath(conversationID, "read"), nil, nil)
}

func conversationPath(id, action string) string {
	return "/conversations/" + url.PathEscape(id) + "/" + action
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	a.creds.Apply(req.Header)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err == nil {
		se.Message, se.Code = body.Error, body.Code
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
