package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	requesterID = "7f0f4b86-5d6c-4c39-9a4e-0d2b2f0a1e11"
	aliceID     = "0c8a1e52-98f1-4a8e-8b61-0b5d4c3a2f01"
	bobID       = "3d1b2c64-7a0e-4d3c-9b1a-6f5e4d3c2b10"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStore(db, zaptest.NewLogger(t)), mock
}

func TestPostgresStore_ListSearchableProfiles(t *testing.T) {
	store, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)

	updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(listProfilesQuery).
		WithArgs(requesterID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "full_name", "avatar_url", "bio", "location", "email", "current_intent",
			"availability", "professional_background", "is_searchable", "updated_at",
		}).
			AddRow(aliceID, "Alice", nil, "Builds data tools", "Berlin", "alice@example.com", "{cofounder,mentor}",
				"part_time", "10 years in fintech", true, updated).
			AddRow(bobID, "Bob", "https://cdn/bob.png", nil, nil, nil, "{}",
				nil, nil, true, updated))

	mock.ExpectQuery(listSkillsQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "skill_name", "proficiency", "years_of_experience"}).
			AddRow(aliceID, "Go", "expert", int64(8)).
			AddRow(aliceID, "SQL", "advanced", nil).
			AddRow(bobID, "Design", "intermediate", int64(3)))

	mock.ExpectQuery(listIkigaiQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "what_you_love", "what_youre_good_at", "what_world_needs",
			"what_you_can_be_paid_for", "career_aspirations", "purpose_statement",
		}).AddRow(aliceID, "data", "systems", "clarity", "consulting", nil, "make data usable"))

	mock.ExpectQuery(countPortfolioQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "count"}).
			AddRow(bobID, int64(4)))

	items, err := store.ListSearchableProfiles(context.Background(), requesterID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	alice := items[0]
	assert.Equal(t, aliceID, alice.ID)
	assert.Equal(t, "Alice", alice.FullName)
	assert.Equal(t, []Intent{IntentCofounder, IntentMentor}, alice.Intents)
	assert.Equal(t, AvailabilityPartTime, alice.Availability)
	assert.True(t, alice.Searchable)
	assert.Equal(t, updated, alice.UpdatedAt)
	require.Len(t, alice.Skills, 2)
	assert.Equal(t, "Go", alice.Skills[0].Name)
	require.NotNil(t, alice.Skills[0].YearsOfExperience)
	assert.Equal(t, 8, *alice.Skills[0].YearsOfExperience)
	assert.Nil(t, alice.Skills[1].YearsOfExperience)
	require.NotNil(t, alice.Ikigai)
	assert.Equal(t, "make data usable", alice.Ikigai.PurposeStatement)
	assert.Zero(t, alice.PortfolioCount)

	bob := items[1]
	assert.Equal(t, bobID, bob.ID)
	assert.Empty(t, bob.Bio)
	assert.Empty(t, bob.Intents)
	assert.Nil(t, bob.Ikigai)
	assert.Equal(t, 4, bob.PortfolioCount)
	require.Len(t, bob.Skills, 1)
	assert.Equal(t, ProficiencyIntermediate, bob.Skills[0].Proficiency)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSearchableProfiles_Empty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(listProfilesQuery).
		WithArgs(requesterID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := store.ListSearchableProfiles(context.Background(), requesterID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSearchableProfiles_QueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(listProfilesQuery).
		WithArgs(requesterID).
		WillReturnError(errors.New("connection refused"))

	_, err := store.ListSearchableProfiles(context.Background(), requesterID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query profiles")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresStore_ListSearchableProfiles_RelationError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(listProfilesQuery).
		WithArgs(requesterID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "full_name", "avatar_url", "bio", "location", "email", "current_intent",
			"availability", "professional_background", "is_searchable", "updated_at",
		}).AddRow(aliceID, "Alice", nil, nil, nil, nil, "{}", nil, nil, true, nil))
	mock.ExpectQuery(listSkillsQuery).WithArgs(sqlmock.AnyArg()).WillReturnError(errors.New("boom"))
	mock.ExpectQuery(listIkigaiQuery).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "what_you_love", "what_youre_good_at", "what_world_needs",
			"what_you_can_be_paid_for", "career_aspirations", "purpose_statement",
		}))
	mock.ExpectQuery(countPortfolioQuery).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "count"}))

	_, err := store.ListSearchableProfiles(context.Background(), requesterID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query skills")
}

func TestPostgresStore_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:   "known user",
			userID: requesterID,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(profileExistsQuery).WithArgs(requesterID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
		},
		{
			name:   "unknown user",
			userID: requesterID,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(profileExistsQuery).WithArgs(requesterID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: ErrUnknownRequester,
		},
		{
			name:    "malformed id",
			userID:  "not-a-uuid",
			mock:    func(sqlmock.Sqlmock) {},
			wantErr: ErrInvalidRequester,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.mock(mock)

			err := store.Resolve(context.Background(), tt.userID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
