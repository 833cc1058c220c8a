package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const CognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// Credential authorizes one outgoing model request.
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// APIKeyCredential sends a static key, either as a bearer token or in the
// Azure "api-key" header.
type APIKeyCredential struct {
	Key    string
	Header string
}

func (c APIKeyCredential) Apply(_ context.Context, req *http.Request) error {
	key := strings.TrimSpace(c.Key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if c.Header != "" {
		req.Header.Set(c.Header, key)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+key)
	return nil
}

// TokenCredential exchanges an Azure identity for a bearer token on each
// request. The azidentity credentials cache tokens until shortly before
// they expire.
type TokenCredential struct {
	source azcore.TokenCredential
	scope  string
}

func NewTokenCredential(source azcore.TokenCredential, scope string) *TokenCredential {
	if strings.TrimSpace(scope) == "" {
		scope = CognitiveServicesScope
	}
	return &TokenCredential{source: source, scope: scope}
}

// NewAzureCredential uses the managed identity with clientID when set and
// the default Azure credential chain otherwise.
func NewAzureCredential(clientID string) (*TokenCredential, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID != "" {
		cred, err := azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(clientID),
		})
		if err != nil {
			return nil, fmt.Errorf("create managed identity credential: %w", err)
		}
		return NewTokenCredential(cred, CognitiveServicesScope), nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create default azure credential: %w", err)
	}
	return NewTokenCredential(cred, CognitiveServicesScope), nil
}

func (c *TokenCredential) Apply(ctx context.Context, req *http.Request) error {
	token, err := c.source.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.scope}})
	if err != nil {
		return fmt.Errorf("acquire model endpoint token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	return nil
}
