package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"igharvest/internal/harvest"
	"igharvest/internal/model"
)

type linkRow struct {
	ActivityID int64  `db:"activity_id"`
	UserID     int64  `db:"user_id"`
	SocialID   string `db:"social_id"`
	SocialName string `db:"social_name"`
}

// SaveLink records that a local user owns a platform account.
func (s *Store) SaveLink(ctx context.Context, l model.SocialLink) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO social_links(activity_id, user_id, social_id, social_name)
	  VALUES(:activity_id, :user_id, :social_id, :social_name)
	  ON CONFLICT(activity_id, user_id) DO UPDATE SET social_id=excluded.social_id, social_name=excluded.social_name`,
		linkRow{ActivityID: l.ActivityID, UserID: l.UserID, SocialID: l.SocialID, SocialName: l.SocialName})
	return err
}

func (s *Store) DeleteLinks(ctx context.Context, activityID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM social_links WHERE activity_id=?`, activityID)
	return err
}

// Resolver returns the user resolver of one activity.
func (s *Store) Resolver(activityID int64) harvest.UserResolver {
	return &resolver{db: s, activityID: activityID}
}

type resolver struct {
	db         *Store
	activityID int64
}

func (r *resolver) ResolveLocalUser(ctx context.Context, nativeID string) (*int64, error) {
	if nativeID == "" {
		return nil, nil
	}
	var id int64
	err := r.db.db.GetContext(ctx, &id, `SELECT user_id FROM social_links WHERE activity_id=? AND social_id=?`, r.activityID, nativeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *resolver) LocalUserLink(ctx context.Context, userID int64) (*model.SocialLink, error) {
	var row linkRow
	err := r.db.db.GetContext(ctx, &row, `SELECT activity_id, user_id, social_id, social_name FROM social_links WHERE activity_id=? AND user_id=?`, r.activityID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.SocialLink{ActivityID: row.ActivityID, UserID: row.UserID, SocialID: row.SocialID, SocialName: row.SocialName}, nil
}

var (
	_ harvest.TokenStore       = (*Store)(nil)
	_ harvest.InteractionStore = (*Store)(nil)
	_ harvest.UserDirectory    = (*Store)(nil)
	_ harvest.ActivityStore    = (*Store)(nil)
	_ harvest.CohortProvider   = (*Store)(nil)
	_ harvest.KPIStore         = (*Store)(nil)
)
