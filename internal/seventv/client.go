// Package seventv is a read-only client for the 7TV HTTP API.
//
// Two lookups share one endpoint: a channel's active emote set and a user's
// profile metadata both come from /v3/users/twitch/{name}. Missing users and
// error responses are treated as "no data" by callers, per the availability
// over strictness policy of the whole pipeline.
package seventv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/platform/retry"
)

// ErrNotFound is returned when 7TV has no record for the requested name.
var ErrNotFound = errors.New("seventv: not found")

const requestTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	policy  retry.Policy
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
		},
	}
}

// userResponse is the subset of the 7TV user payload we consume.
type userResponse struct {
	ID        string `json:"id"`
	AvatarURL string `json:"avatar_url"`
	Style     struct {
		Paint json.RawMessage `json:"paint"`
	} `json:"style"`
	EmoteSet struct {
		Emotes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"emotes"`
	} `json:"emote_set"`
}

// ChannelEmotes returns the channel's active emote set. A channel unknown to
// 7TV yields an empty set, not an error.
func (c *Client) ChannelEmotes(ctx context.Context, channel string) ([]domain.EmoteDescriptor, error) {
	user, err := c.fetchUser(ctx, channel)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emotes := make([]domain.EmoteDescriptor, 0, len(user.EmoteSet.Emotes))
	for _, e := range user.EmoteSet.Emotes {
		emotes = append(emotes, domain.EmoteDescriptor{
			Name: e.Name,
			ID:   e.ID,
			URL:  fmt.Sprintf("https://cdn.7tv.app/emote/%s/2x.webp", e.ID),
		})
	}
	return emotes, nil
}

// LookupUser resolves avatar and paint metadata for a chatter.
func (c *Client) LookupUser(ctx context.Context, username string) (domain.UserInfo, error) {
	user, err := c.fetchUser(ctx, username)
	if err != nil {
		return domain.UserInfo{}, err
	}
	return domain.UserInfo{
		ID:     user.ID,
		Avatar: user.AvatarURL,
		Paint:  user.Style.Paint,
	}, nil
}

func (c *Client) fetchUser(ctx context.Context, name string) (*userResponse, error) {
	url := fmt.Sprintf("%s/v3/users/twitch/%s", c.baseURL, name)

	user, err := retry.Do(ctx, c.policy, classify, func() (*userResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, &statusError{code: res.StatusCode}
		}

		var payload userResponse
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode 7tv response: %w", err)
		}
		return &payload, nil
	})
	if err != nil {
		var perm *retry.PermanentError
		var status *statusError
		if errors.As(err, &perm) && errors.As(perm.Err, &status) && status.code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("seventv: unexpected status %d", e.code) }

func classify(err error) retry.Action {
	var status *statusError
	if !errors.As(err, &status) {
		// network / decode errors are worth another attempt
		return retry.Retry
	}
	switch {
	case status.code == http.StatusTooManyRequests:
		return retry.After
	case status.code >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}
