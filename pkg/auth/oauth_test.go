package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	data := fmt.Sprintf(`{"installed":{"client_id":"client","client_secret":"secret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestNewOAuth2Config(t *testing.T) {
	config := NewOAuth2Config("cred.json", "token.json", "scope-a")
	assert.Equal(t, "cred.json", config.CredentialsPath)
	assert.Equal(t, "token.json", config.TokenPath)
	assert.Equal(t, []string{"scope-a"}, config.Scopes)
	assert.NotNil(t, config.Prompt)

	assert.Equal(t, DefaultScopes, NewOAuth2Config("cred.json", "token.json").Scopes)
}

func TestOAuth2Config_LoadCredentials(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := (&OAuth2Config{CredentialsPath: filepath.Join(dir, "none.json")}).LoadCredentials()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not read credentials file")
	})

	t.Run("invalid content", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("invalid json content"), 0o600))
		_, err := (&OAuth2Config{CredentialsPath: path}).LoadCredentials()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not parse credentials file")
	})

	t.Run("valid", func(t *testing.T) {
		path := writeCredentials(t, dir, "https://accounts.example.com/token")
		config, err := NewOAuth2Config(path, "", "scope-a").LoadCredentials()
		require.NoError(t, err)
		assert.Equal(t, "client", config.ClientID)
		assert.Equal(t, []string{"scope-a"}, config.Scopes)
	})
}

func TestOAuth2Config_SaveAndLoadToken(t *testing.T) {
	dir := t.TempDir()
	config := &OAuth2Config{TokenPath: filepath.Join(dir, "nested", "token.json")}

	_, err := config.LoadToken()
	assert.Error(t, err)
	assert.Error(t, config.SaveToken(nil))

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, config.SaveToken(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}))

	info, err := os.Stat(config.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := config.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.True(t, token.Expiry.Equal(expiry))

	require.NoError(t, os.WriteFile(config.TokenPath, []byte("{broken"), 0o600))
	_, err = config.LoadToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not decode token")
}

func TestOAuth2Config_GetToken_CachedToken(t *testing.T) {
	dir := t.TempDir()
	config := NewOAuth2Config(writeCredentials(t, dir, "https://accounts.example.com/token"), filepath.Join(dir, "token.json"))
	require.NoError(t, config.SaveToken(&oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)}))

	token, err := config.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", token.AccessToken)
}

func TestOAuth2Config_GetToken_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	config := NewOAuth2Config(writeCredentials(t, dir, server.URL), filepath.Join(dir, "token.json"))
	require.NoError(t, config.SaveToken(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	token, err := config.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)

	saved, err := config.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestOAuth2Config_GetToken_RefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"server_error"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	config := NewOAuth2Config(writeCredentials(t, dir, server.URL), filepath.Join(dir, "token.json"))
	require.NoError(t, config.SaveToken(&oauth2.Token{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Hour)}))

	_, err := config.GetToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token refresh failed")
}

func TestIsRevoked(t *testing.T) {
	assert.True(t, isRevoked(&oauth2.RetrieveError{ErrorCode: "invalid_grant"}))
	assert.True(t, isRevoked(fmt.Errorf("wrapped: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"})))
	assert.False(t, isRevoked(&oauth2.RetrieveError{ErrorCode: "server_error"}))
	assert.False(t, isRevoked(fmt.Errorf("plain")))
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	handler := callbackHandler("state-1", codes, errs)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=other&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Error(t, <-errs)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=state-1&code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization successful")
	assert.Equal(t, "abc", <-codes)
}

func TestNewGmailService_MissingCredentials(t *testing.T) {
	dir := t.TempDir()
	_, err := NewGmailService(context.Background(), filepath.Join(dir, "none.json"), filepath.Join(dir, "token.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read credentials file")
}
