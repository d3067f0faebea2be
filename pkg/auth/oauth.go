package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultScopes lets the client read messages and change their labels
var DefaultScopes = []string{gmail.GmailModifyScope, gmail.GmailLabelsScope}

// authTimeout bounds how long the browser round trip may take
const authTimeout = 5 * time.Minute

// OAuth2Config holds OAuth2 configuration
type OAuth2Config struct {
	CredentialsPath string
	TokenPath       string
	Scopes          []string

	// Prompt receives the authorization instructions
	Prompt io.Writer
}

// NewOAuth2Config creates a new OAuth2 configuration
func NewOAuth2Config(credentialsPath string, tokenPath string, scopes ...string) *OAuth2Config {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &OAuth2Config{
		CredentialsPath: credentialsPath,
		TokenPath:       tokenPath,
		Scopes:          scopes,
		Prompt:          os.Stderr,
	}
}

// LoadCredentials loads OAuth2 credentials from file
func (c *OAuth2Config) LoadCredentials() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(data, c.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials file: %w", err)
	}

	return config, nil
}

// LoadToken loads the cached token from file
func (c *OAuth2Config) LoadToken() (*oauth2.Token, error) {
	f, err := os.Open(c.TokenPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return token, nil
}

// SaveToken saves token to file, readable by the owner only
func (c *OAuth2Config) SaveToken(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(c.TokenPath), 0o700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}

	f, err := os.OpenFile(c.TokenPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("could not save OAuth token: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// GetToken returns a valid token, refreshing it or running the browser
// flow as needed, and caches the result.
func (c *OAuth2Config) GetToken(ctx context.Context) (*oauth2.Token, error) {
	config, err := c.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return c.token(ctx, config)
}

func (c *OAuth2Config) token(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	token, err := c.LoadToken()
	if err != nil {
		token, err = c.authenticate(ctx, config)
		if err != nil {
			return nil, err
		}
	}

	if !token.Valid() {
		refreshed, err := config.TokenSource(ctx, token).Token()
		switch {
		case err == nil:
			token = refreshed
		case isRevoked(err):
			c.printf("\nYour Gmail access has expired or been revoked. Re-authentication is required.\n")
			token, err = c.authenticate(ctx, config)
			if err != nil {
				return nil, fmt.Errorf("re-authentication failed: %w", err)
			}
		default:
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
	}

	if err := c.SaveToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re) && re.ErrorCode == "invalid_grant"
}

func (c *OAuth2Config) printf(format string, args ...any) {
	if c.Prompt != nil {
		fmt.Fprintf(c.Prompt, format, args...)
	}
}

// authenticate runs the installed-app flow with a loopback redirect
func (c *OAuth2Config) authenticate(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("could not start local server: %w", err)
	}
	state := uuid.NewString()
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           callbackHandler(state, codeChan, errorChan),
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	local := *config
	local.RedirectURL = "http://" + listener.Addr().String()

	c.printf("\nAuthorization required\n")
	c.printf("1. Open this link: %s\n", local.AuthCodeURL(state, oauth2.AccessTypeOffline))
	c.printf("2. Grant access to the application\n")
	c.printf("3. You will be redirected automatically\n\nWaiting for authorization...\n")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errorChan:
		return nil, fmt.Errorf("local server error: %w", err)
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timeout exceeded")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := local.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorization code for token: %w", err)
	}
	c.printf("Authorization successful\n")
	return token, nil
}

// callbackHandler receives the redirect carrying the authorization code
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if q.Get("state") != state || code == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "<html><body><h2>Authorization error</h2><p>Authorization code not received.</p></body></html>")
			select {
			case errs <- fmt.Errorf("authorization code not received"):
			default:
			}
			return
		}
		_, _ = io.WriteString(w, "<html><body><h2>Authorization successful</h2><p>You can close this window and return to the application.</p></body></html>")
		select {
		case codes <- code:
		default:
		}
	})
}

// NewGmailService creates a new Gmail service using OAuth2
func NewGmailService(ctx context.Context, credentialsPath, tokenPath string, scopes ...string) (*gmail.Service, error) {
	oauthConfig := NewOAuth2Config(credentialsPath, tokenPath, scopes...)

	config, err := oauthConfig.LoadCredentials()
	if err != nil {
		return nil, err
	}
	token, err := oauthConfig.token(ctx, config)
	if err != nil {
		return nil, err
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("could not create Gmail service: %w", err)
	}
	return service, nil
}
