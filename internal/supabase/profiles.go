package supabase

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/profiles"
)

const (
	profilesTable = "profiles"
	// Embeds the one-to-one ikigai row, the skills list and the portfolio count.
	profileSelect = "id,full_name,avatar_url,bio,location,email,current_intent,availability," +
		"professional_background,is_searchable,updated_at," +
		"ikigai_responses(*),skills(skill_name,proficiency,years_of_experience),portfolio_items(count)"
)

// ListSearchableProfiles implements profiles.Store.
func (c *Client) ListSearchableProfiles(ctx context.Context, excluding string) ([]*profiles.Profile, error) {
	q := url.Values{}
	q.Set("select", profileSelect)
	q.Set("is_searchable", "eq.true")
	if excluding != "" {
		q.Set("id", "neq."+excluding)
	}
	q.Set("order", "created_at.asc,id.asc")

	items, err := c.GetItems(ctx, profilesTable, q)
	if err != nil {
		return nil, fmt.Errorf("list searchable profiles: %w", err)
	}

	result, err := profiles.DecodeRows(items)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("loaded searchable profiles", zap.Int("count", len(result)))
	return result, nil
}

// Resolve implements profiles.IdentityResolver by looking up the requester's
// own profile row.
func (c *Client) Resolve(ctx context.Context, userID string) error {
	if err := profiles.ValidateUserID(userID); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("select", "id")
	q.Set("id", "eq."+userID)
	q.Set("limit", "1")

	items, err := c.GetItems(ctx, profilesTable, q)
	if err != nil {
		return fmt.Errorf("lookup requester: %w", err)
	}
	if len(items) == 0 {
		return profiles.ErrUnknownRequester
	}
	return nil
}
