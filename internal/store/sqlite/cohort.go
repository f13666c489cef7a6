package sqlite

import (
	"context"
)

func (s *Store) Cohort(ctx context.Context, activityID int64) ([]int64, error) {
	var out []int64
	err := s.db.SelectContext(ctx, &out, `SELECT user_id FROM cohort WHERE activity_id=? ORDER BY user_id`, activityID)
	return out, err
}

// AddToCohort enrols users; already enrolled users are ignored.
func (s *Store) AddToCohort(ctx context.Context, activityID int64, users ...int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, `INSERT INTO cohort(activity_id, user_id) VALUES(?, ?) ON CONFLICT DO NOTHING`, activityID, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}
