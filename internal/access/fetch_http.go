package access

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rh-console/rh-console/internal/identity"
)

const (
	permissionsPath  = "/permissions/me"
	assertionTTL     = time.Minute
	assertionIssuer  = "rh-console"
	maxGrantBodySize = 1 << 20
)

// AuthorityClaims identify the principal to the remote authority.
type AuthorityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// HTTPFetcher asks a remote permission authority for the grant of the
// principal, identified only by a short-lived HS256 bearer assertion.
type HTTPFetcher struct {
	baseURL string
	secret  []byte
	client  *http.Client
	now     func() time.Time
}

// NewHTTPFetcher constructs an HTTPFetcher. The client carries the transport
// timeout; nil selects http.DefaultClient.
func NewHTTPFetcher(baseURL, secret string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		client:  client,
		now:     time.Now,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, p identity.Principal) (*Grant, error) {
	token, err := f.assertion(p)
	if err != nil {
		return nil, fetchError(p.ID, "sign", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+permissionsPath, nil)
	if err != nil {
		return nil, fetchError(p.ID, "request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fetchError(p.ID, "transport", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGrantBodySize))
	if err != nil {
		return nil, fetchError(p.ID, "read", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fetchError(p.ID, "authority", ErrGrantNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchError(p.ID, "authority", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	grant, err := ParseGrant(body)
	if err != nil {
		return nil, fetchError(p.ID, "decode", err)
	}
	return grant, nil
}

func (f *HTTPFetcher) assertion(p identity.Principal) (string, error) {
	now := f.now()
	claims := AuthorityClaims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    assertionIssuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
}

var _ Fetcher = (*HTTPFetcher)(nil)
