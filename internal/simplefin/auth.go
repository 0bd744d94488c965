package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuthState is the claimed access URL saved between runs.
type AuthState struct {
	ClaimedAt time.Time `json:"claimed_at"`
	AccessURL string    `json:"access_url"`
	// TokenHint identifies the setup token the URL was claimed with.
	TokenHint string `json:"token_hint"`
}

// LoadOrClaimAuth returns the saved access URL, claiming one with the setup
// token the first time.
func LoadOrClaimAuth(ctx context.Context, httpClient *http.Client, token, stateFile string, logger *slog.Logger) (*AuthState, error) {
	auth, err := loadAuthState(stateFile)
	if err == nil && auth.AccessURL != "" {
		logger.Info("Using saved SimpleFIN access URL",
			"claimed_at", auth.ClaimedAt.Format("2006-01-02"),
			"state_file", stateFile)
		return auth, nil
	}
	if token == "" {
		return nil, fmt.Errorf("no saved access URL in %s and no setup token configured", stateFile)
	}

	logger.Info("Claiming SimpleFIN setup token")
	accessURL, err := claimToken(ctx, httpClient, token)
	if err != nil {
		return nil, fmt.Errorf("failed to claim token: %w", err)
	}

	auth = &AuthState{
		AccessURL: accessURL,
		ClaimedAt: time.Now(),
		TokenHint: tokenHint(token),
	}
	if err := saveAuthState(stateFile, auth); err != nil {
		return nil, fmt.Errorf("failed to save auth state: %w", err)
	}
	logger.Info("Saved SimpleFIN access URL", "state_file", stateFile)

	return auth, nil
}

// claimToken decodes the setup token into a claim URL and POSTs to it; the
// response body is the access URL.
func claimToken(ctx context.Context, httpClient *http.Client, token string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("failed to decode SimpleFIN token: %w", err)
		}
	}

	claimURL := string(decoded)
	if !isHTTPURL(claimURL) {
		return "", fmt.Errorf("decoded token is not a URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claim rejected: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !isHTTPURL(accessURL) {
		return "", fmt.Errorf("invalid access URL received")
	}
	return accessURL, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func loadAuthState(path string) (*AuthState, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var auth AuthState
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func saveAuthState(path string, auth *AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// tokenHint keeps the ends of a token so the state file never holds it whole.
func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short_token"
}
