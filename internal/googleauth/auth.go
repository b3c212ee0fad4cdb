// Package googleauth builds authenticated Gmail clients from a client
// secrets file and a previously obtained token. The orchestrator runs
// headless, so there is no interactive consent flow here: a missing or
// unreadable credential is a permanent condition the caller surfaces as an
// unhealthy adapter.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Credentials locates the OAuth client secrets and the stored token.
type Credentials struct {
	ClientSecretsFile string `yaml:"clientSecretsFile" json:"clientSecretsFile"`
	TokenFile         string `yaml:"tokenFile" json:"tokenFile"`
}

// Configured reports whether both credential paths are set.
func (c Credentials) Configured() bool {
	return c.ClientSecretsFile != "" && c.TokenFile != ""
}

// Client returns an HTTP client that refreshes its token automatically.
func Client(ctx context.Context, creds Credentials, scopes ...string) (*http.Client, error) {
	secrets, err := os.ReadFile(creds.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secrets %s: %w", creds.ClientSecretsFile, err)
	}
	config, err := google.ConfigFromJSON(secrets, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secrets: %w", err)
	}
	token, err := tokenFromFile(creds.TokenFile)
	if err != nil {
		return nil, err
	}
	return config.Client(ctx, token), nil
}

// GmailService builds a Gmail API service with the given scopes.
func GmailService(ctx context.Context, creds Credentials, scopes ...string) (*gmail.Service, error) {
	client, err := Client(ctx, creds, scopes...)
	if err != nil {
		return nil, err
	}
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to build gmail service: %w", err)
	}
	return service, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read token %s: %w", path, err)
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", path, err)
	}
	return token, nil
}
