// Package identity talks to the OAuth2 identity provider: it exchanges an
// authorization code for a token and fetches the user's identity and guild
// memberships with that token.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"guildgate/internal/logger"
)

const serviceName = "identity-provider"

// ProviderError reports a non-success response from the identity provider.
// Body carries the provider's response text verbatim.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %s", e.Operation, e.Body)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

const (
	OperationToken  = "token exchange"
	OperationUser   = "user lookup"
	OperationGuilds = "guild lookup"
)

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is the three-call disclosure flow used by the OAuth callback
type Provider interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUser(ctx context.Context, token *oauth2.Token) (*User, error)
	FetchGuilds(ctx context.Context, token *oauth2.Token) ([]Guild, error)
	AuthCodeURL(state string) string
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBaseURL   string // e.g. https://discord.com/api
	Scopes       []string
}

type client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewClient builds a provider client. A nil httpClient uses http.DefaultClient.
// No timeout is applied to provider calls beyond what httpClient carries.
func NewClient(cfg Config, httpClient *http.Client) Provider {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: base,
		httpClient: httpClient,
	}
}

func (c *client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL returns the consent page URL carrying state
func (c *client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (c *client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	logger.ExternalServiceCall(serviceName, "Exchange")
	token, err := c.oauth.Exchange(c.withHTTPClient(ctx), code,
		oauth2.SetAuthURLParam("scope", strings.Join(c.oauth.Scopes, " ")),
	)
	if err != nil {
		err = toProviderError(OperationToken, err)
		logger.ExternalServiceResult(serviceName, "Exchange", err)
		return nil, err
	}
	logger.ExternalServiceResult(serviceName, "Exchange", nil)
	return token, nil
}

func (c *client) FetchUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	var user User
	if err := c.get(ctx, token, "/users/@me", OperationUser, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *client) FetchGuilds(ctx context.Context, token *oauth2.Token) ([]Guild, error) {
	var guilds []Guild
	if err := c.get(ctx, token, "/users/@me/guilds", OperationGuilds, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// get performs a bearer-authenticated GET and decodes the JSON body into out
func (c *client) get(ctx context.Context, token *oauth2.Token, path, operation string, out any) error {
	logger.ExternalServiceCall(serviceName, operation, "path", path)
	httpClient := c.oauth.Client(c.withHTTPClient(ctx), token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		err = &ProviderError{Operation: operation, Body: err.Error()}
		logger.ExternalServiceResult(serviceName, operation, err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Operation: operation, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		err := &ProviderError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
		logger.ExternalServiceResult(serviceName, operation, err)
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		err := &ProviderError{Operation: operation, StatusCode: resp.StatusCode, Body: fmt.Sprintf("malformed response: %v", err)}
		logger.ExternalServiceResult(serviceName, operation, err)
		return err
	}
	logger.ExternalServiceResult(serviceName, operation, nil)
	return nil
}

func toProviderError(operation string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &ProviderError{Operation: operation, StatusCode: status, Body: string(retrieveErr.Body)}
	}
	return &ProviderError{Operation: operation, Body: err.Error()}
}
