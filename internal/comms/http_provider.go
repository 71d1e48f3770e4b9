package comms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("comms %s: status %d: %s", e.Op, e.Status, e.Message)
}

type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	TokenSecret string
	TokenTTL    time.Duration
	// Timeout bounds every single provider call.
	Timeout time.Duration
}

// HTTPProvider calls the provider's REST API and signs access tokens locally.
type HTTPProvider struct {
	baseURL     string
	apiKey      string
	tokenSecret []byte
	tokenTTL    time.Duration
	timeout     time.Duration
	httpClient  *http.Client
	now         func() time.Time
}

// TokenClaims is the payload of an issued access token.
type TokenClaims struct {
	Scopes []Scope `json:"scp"`
	jwt.RegisteredClaims
}

func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("comms base url is required")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("comms token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPProvider{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		tokenSecret: []byte(cfg.TokenSecret),
		tokenTTL:    cfg.TokenTTL,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{},
		now:         time.Now,
	}, nil
}

type idResponse struct {
	ID string `json:"id"`
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, opts RoomOptions) (string, error) {
	body := map[string]any{}
	if !opts.ValidFrom.IsZero() {
		body["validFrom"] = opts.ValidFrom.UTC().Format(time.RFC3339)
	}
	if !opts.ValidUntil.IsZero() {
		body["validUntil"] = opts.ValidUntil.UTC().Format(time.RFC3339)
	}

	var resp idResponse
	if err := p.call(ctx, "create room", http.MethodPost, "/rooms", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("comms create room: empty room id")
	}
	return resp.ID, nil
}

func (p *HTTPProvider) AddParticipantToRoom(ctx context.Context, roomID, identity string, role RoomRole) error {
	body := map[string]any{
		"participants": []map[string]string{{"identity": identity, "role": string(role)}},
	}
	return p.call(ctx, "add room participant", http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/participants", body, nil)
}

func (p *HTTPProvider) RemoveParticipantFromRoom(ctx context.Context, roomID, identity string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/participants/" + url.PathEscape(identity)
	return p.call(ctx, "remove room participant", http.MethodDelete, path, nil, nil)
}

func (p *HTTPProvider) CreateChatThread(ctx context.Context, topic, serviceIdentity string) (string, error) {
	body := map[string]any{"topic": topic, "createdBy": serviceIdentity}

	var resp idResponse
	if err := p.call(ctx, "create chat thread", http.MethodPost, "/chat/threads", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("comms create chat thread: empty thread id")
	}
	return resp.ID, nil
}

func (p *HTTPProvider) AddParticipantToChat(ctx context.Context, threadID, serviceIdentity, identity, displayName string) error {
	body := map[string]any{"identity": identity, "displayName": displayName, "addedBy": serviceIdentity}
	return p.call(ctx, "add chat participant", http.MethodPost, "/chat/threads/"+url.PathEscape(threadID)+"/participants", body, nil)
}

func (p *HTTPProvider) RemoveParticipantFromChat(ctx context.Context, threadID, serviceIdentity, identity string) error {
	path := "/chat/threads/" + url.PathEscape(threadID) + "/participants/" + url.PathEscape(identity) +
		"?removedBy=" + url.QueryEscape(serviceIdentity)
	return p.call(ctx, "remove chat participant", http.MethodDelete, path, nil, nil)
}

func (p *HTTPProvider) CreateIdentity(ctx context.Context) (string, error) {
	var resp idResponse
	if err := p.call(ctx, "create identity", http.MethodPost, "/identities", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("comms create identity: empty identity")
	}
	return resp.ID, nil
}

// IssueToken signs an HS256 token for identity. It makes no network call.
func (p *HTTPProvider) IssueToken(_ context.Context, identity string, scopes ...Scope) (Token, error) {
	if identity == "" {
		return Token{}, errors.New("comms issue token: identity is required")
	}

	now := p.now()
	expires := now.Add(p.tokenTTL)
	claims := TokenClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.tokenSecret)
	if err != nil {
		return Token{}, fmt.Errorf("comms issue token: %w", err)
	}

	return Token{Value: signed, ExpiresOn: expires}, nil
}

func (p *HTTPProvider) call(ctx context.Context, op, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("comms %s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("comms %s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("comms %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("comms %s: decode: %w", op, err)
	}
	return nil
}
