package profiles

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	listProfilesQuery = `SELECT id, full_name, avatar_url, bio, location, email, current_intent,
       availability, professional_background, is_searchable, updated_at
FROM profiles
WHERE is_searchable = true AND id <> $1
ORDER BY created_at, id`

	listSkillsQuery = `SELECT user_id, skill_name, proficiency, years_of_experience
FROM skills
WHERE user_id = ANY($1)
ORDER BY user_id, created_at, id`

	listIkigaiQuery = `SELECT user_id, what_you_love, what_youre_good_at, what_world_needs,
       what_you_can_be_paid_for, career_aspirations, purpose_statement
FROM ikigai_responses
WHERE user_id = ANY($1)`

	countPortfolioQuery = `SELECT user_id, count(*)
FROM portfolio_items
WHERE user_id = ANY($1)
GROUP BY user_id`

	profileExistsQuery = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`
)

// PostgresConfig describes the connection to the database behind the backend.
type PostgresConfig struct {
	DSN            string
	MaxConnections int
	MaxIdle        int
}

// PostgresStore reads profiles straight from the backend's Postgres schema.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres opens a pooled connection using the lib/pq driver.
func OpenPostgres(cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return NewPostgresStore(db, logger), nil
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Ping tests the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, profileExistsQuery, userID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup requester: %w", err)
	}
	if !exists {
		return ErrUnknownRequester
	}
	return nil
}

func (s *PostgresStore) ListSearchableProfiles(ctx context.Context, excluding string) ([]*Profile, error) {
	items, err := s.listProfiles(ctx, excluding)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	byID := make(map[string]*Profile, len(items))
	ids := make([]string, 0, len(items))
	for _, p := range items {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	// Each loader writes to distinct fields, so they can share the profiles.
	skills := make(map[string][]Skill, len(items))
	ikigai := make(map[string]*Ikigai, len(items))
	portfolio := make(map[string]int, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loadSkills(gctx, ids, skills) })
	g.Go(func() error { return s.loadIkigai(gctx, ids, ikigai) })
	g.Go(func() error { return s.countPortfolio(gctx, ids, portfolio) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for id, p := range byID {
		p.Skills = skills[id]
		p.Ikigai = ikigai[id]
		p.PortfolioCount = portfolio[id]
	}

	s.logger.Debug("loaded searchable profiles", zap.Int("count", len(items)))
	return items, nil
}

func (s *PostgresStore) listProfiles(ctx context.Context, excluding string) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, listProfilesQuery, excluding)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var items []*Profile
	for rows.Next() {
		var (
			p                                      Profile
			fullName, avatar, bio, location, email sql.NullString
			availability, background               sql.NullString
			searchable                             sql.NullBool
			updatedAt                              sql.NullTime
			intents                                pq.StringArray
		)
		if err := rows.Scan(&p.ID, &fullName, &avatar, &bio, &location, &email, &intents,
			&availability, &background, &searchable, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}

		p.FullName = fullName.String
		p.AvatarURL = avatar.String
		p.Bio = bio.String
		p.Location = location.String
		p.Email = email.String
		p.Availability = Availability(availability.String)
		p.ProfessionalBackground = background.String
		p.Searchable = searchable.Bool
		p.UpdatedAt = updatedAt.Time
		p.Intents = make([]Intent, 0, len(intents))
		for _, intent := range intents {
			p.Intents = append(p.Intents, Intent(intent))
		}

		items = append(items, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return items, nil
}

func (s *PostgresStore) loadSkills(ctx context.Context, ids []string, into map[string][]Skill) error {
	rows, err := s.db.QueryContext(ctx, listSkillsQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID      string
			skill       Skill
			proficiency sql.NullString
			years       sql.NullInt64
		)
		if err := rows.Scan(&userID, &skill.Name, &proficiency, &years); err != nil {
			return fmt.Errorf("scan skill: %w", err)
		}
		skill.Proficiency = Proficiency(proficiency.String)
		if years.Valid {
			y := int(years.Int64)
			skill.YearsOfExperience = &y
		}
		into[userID] = append(into[userID], skill)
	}
	return rows.Err()
}

func (s *PostgresStore) loadIkigai(ctx context.Context, ids []string, into map[string]*Ikigai) error {
	rows, err := s.db.QueryContext(ctx, listIkigaiQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query ikigai: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID                          string
			love, good, needs, paid, career sql.NullString
			purpose                         sql.NullString
		)
		if err := rows.Scan(&userID, &love, &good, &needs, &paid, &career, &purpose); err != nil {
			return fmt.Errorf("scan ikigai: %w", err)
		}
		into[userID] = &Ikigai{
			WhatYouLove:         love.String,
			WhatYoureGoodAt:     good.String,
			WhatWorldNeeds:      needs.String,
			WhatYouCanBePaidFor: paid.String,
			CareerAspirations:   career.String,
			PurposeStatement:    purpose.String,
		}
	}
	return rows.Err()
}

func (s *PostgresStore) countPortfolio(ctx context.Context, ids []string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, countPortfolioQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query portfolio counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			return fmt.Errorf("scan portfolio count: %w", err)
		}
		into[userID] = count
	}
	return rows.Err()
}
