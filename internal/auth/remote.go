package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RemoteVerifier asks the Supabase Auth API who owns a token.
type RemoteVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewRemoteVerifier(supabaseURL, anonKey string) *RemoteVerifier {
	return &RemoteVerifier{
		baseURL: supabaseURL,
		anonKey: anonKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"msg"`
			Error   string `json:"error_description"`
		}
		var msg string
		if err := json.Unmarshal(body, &apiErr); err == nil {
			msg = apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("auth provider rejected token (%d): %s", resp.StatusCode, msg)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id from auth provider: %w", err)
	}

	return &Principal{UserID: userID, Email: user.Email}, nil
}
