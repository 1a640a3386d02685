/*
Package plex implements the external collaborator contracts against Plex: the
plex.tv account service as identity provider and a Plex Media Server library
section as catalog provider.
*/
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mediamatch/internal/app/media"
)

// DefaultTVBaseURL is the public plex.tv API endpoint.
const DefaultTVBaseURL = "https://plex.tv"

// httpTimeout is a hard cap on any Plex HTTP call, on top of whatever
// deadline the caller's context carries.
const httpTimeout = 15 * time.Second

// TV resolves auth material against the plex.tv account service.
type TV struct {
	baseURL string
	client  *http.Client
}

// NewTV returns an identity provider against baseURL, or the public plex.tv
// endpoint when baseURL is empty.
func NewTV(baseURL string) *TV {
	if baseURL == "" {
		baseURL = DefaultTVBaseURL
	}
	return &TV{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// tvUser is the subset of the plex.tv user resource the server reads.
type tvUser struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Thumb    string `json:"thumb"`
}

// ResolveUser validates the token and returns the account's display name and
// avatar. Any non-200 answer means invalid or expired credentials.
func (t *TV) ResolveUser(ctx context.Context, auth media.Auth) (*media.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/v2/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build plex.tv user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", auth.PlexToken)
	req.Header.Set("X-Plex-Client-Identifier", auth.ClientID)

	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex.tv user request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plex.tv rejected the token (status %d)", res.StatusCode)
	}

	var user tvUser
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode plex.tv user: %w", err)
	}

	displayName := user.Title
	if displayName == "" {
		displayName = user.Username
	}

	return &media.Profile{
		DisplayName: displayName,
		AvatarURL:   user.Thumb,
	}, nil
}
