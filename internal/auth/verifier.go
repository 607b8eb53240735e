package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingCredential means no bearer credential accompanied the request.
	ErrMissingCredential = errors.New("missing bearer credential")
	// ErrInvalidCredential means the credential was rejected.
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	OwnerID string
}

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// StaticVerifier checks tokens against a fixed table.
type StaticVerifier struct {
	entries []staticEntry
}

type staticEntry struct {
	token     []byte
	principal Principal
}

// NewStaticVerifier builds a verifier from "subject:token" pairs.
func NewStaticVerifier(pairs []string) (*StaticVerifier, error) {
	v := &StaticVerifier{}
	for i, pair := range pairs {
		subject, token, ok := strings.Cut(pair, ":")
		if !ok || subject == "" || token == "" {
			return nil, fmt.Errorf("token %d: expected subject:token", i)
		}
		ownerID, err := DeriveOwnerID(subject)
		if err != nil {
			return nil, err
		}
		v.entries = append(v.entries, staticEntry{
			token:     []byte(token),
			principal: Principal{Subject: subject, OwnerID: ownerID},
		})
	}
	return v, nil
}

// Verify compares token against every entry in constant time.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}
	var match *Principal
	for i := range v.entries {
		if subtle.ConstantTimeCompare(v.entries[i].token, []byte(token)) == 1 {
			p := v.entries[i].principal
			match = &p
		}
	}
	if match == nil {
		return nil, ErrInvalidCredential
	}
	return match, nil
}

// RemoteVerifier asks a user-info endpoint who the bearer is. The endpoint
// must answer 200 with a JSON object carrying the user's "id".
type RemoteVerifier struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteVerifier creates a verifier for endpoint. apiKey, when set, is
// sent as the "apikey" header.
func NewRemoteVerifier(endpoint, apiKey string) *RemoteVerifier {
	return &RemoteVerifier{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidCredential
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user endpoint returned status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if info.ID == "" {
		return nil, ErrInvalidCredential
	}
	ownerID, err := DeriveOwnerID(info.ID)
	if err != nil {
		return nil, err
	}
	return &Principal{Subject: info.ID, OwnerID: ownerID}, nil
}

var (
	_ Verifier = (*StaticVerifier)(nil)
	_ Verifier = (*RemoteVerifier)(nil)
)
