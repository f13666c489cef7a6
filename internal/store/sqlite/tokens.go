package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"igharvest/internal/model"
)

// masterUser is the user_id column value of master tokens.
const masterUser int64 = 0

type tokenRow struct {
	ID          int64          `db:"id"`
	ActivityID  int64          `db:"activity_id"`
	UserID      int64          `db:"user_id"`
	Token       string         `db:"token"`
	Username    string         `db:"username"`
	ErrorStatus sql.NullString `db:"error_status"`
	LastUsed    sql.NullInt64  `db:"last_used"`
}

func (r tokenRow) model() model.AccountToken {
	t := model.AccountToken{
		ID:          r.ID,
		ActivityID:  r.ActivityID,
		AccessToken: r.Token,
		Username:    r.Username,
		ErrorStatus: stringPtr(r.ErrorStatus),
		LastUsed:    timePtr(r.LastUsed),
	}
	if r.UserID != masterUser {
		u := r.UserID
		t.UserID = &u
	}
	return t
}

const tokenColumns = `id, activity_id, user_id, token, username, error_status, last_used`

func (s *Store) MasterToken(ctx context.Context, activityID int64) (*model.AccountToken, error) {
	var r tokenRow
	err := s.db.GetContext(ctx, &r, `SELECT `+tokenColumns+` FROM tokens WHERE activity_id=? AND user_id=?`, activityID, masterUser)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := r.model()
	return &t, nil
}

func (s *Store) UserTokens(ctx context.Context, activityID int64, userID *int64) ([]model.AccountToken, error) {
	var rows []tokenRow
	var err error
	if userID == nil {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+tokenColumns+` FROM tokens WHERE activity_id=? AND user_id<>? ORDER BY id`, activityID, masterUser)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+tokenColumns+` FROM tokens WHERE activity_id=? AND user_id=? ORDER BY id`, activityID, *userID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.AccountToken, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// UpsertToken stores t keyed by (activity, user) and sets t.ID.
func (s *Store) UpsertToken(ctx context.Context, t *model.AccountToken) error {
	user := masterUser
	if t.UserID != nil {
		user = *t.UserID
	}
	row := tokenRow{
		ActivityID:  t.ActivityID,
		UserID:      user,
		Token:       t.AccessToken,
		Username:    t.Username,
		ErrorStatus: nullString(t.ErrorStatus),
		LastUsed:    nullUnix(t.LastUsed),
	}
	q, args, err := s.db.BindNamed(`INSERT INTO tokens(activity_id, user_id, token, username, error_status, last_used)
	  VALUES(:activity_id, :user_id, :token, :username, :error_status, :last_used)
	  ON CONFLICT(activity_id, user_id) DO UPDATE SET token=excluded.token, username=excluded.username,
	    error_status=excluded.error_status, last_used=excluded.last_used
	  RETURNING id`, row)
	if err != nil {
		return err
	}
	return s.db.GetContext(ctx, &t.ID, q, args...)
}

func (s *Store) DeleteTokens(ctx context.Context, activityID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE activity_id=?`, activityID)
	return err
}

// DeleteToken disconnects one account; a nil userID removes the master token.
func (s *Store) DeleteToken(ctx context.Context, activityID int64, userID *int64) error {
	user := masterUser
	if userID != nil {
		user = *userID
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE activity_id=? AND user_id=?`, activityID, user)
	return err
}

func (s *Store) ClearErrorStatus(ctx context.Context, tokenID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tokens SET error_status=NULL WHERE id=?`, tokenID)
	return err
}
