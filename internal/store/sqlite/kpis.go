package sqlite

import (
	"context"
	"time"

	"igharvest/internal/kpi"
)

// kpiChunk bounds rows per insert statement below the SQLite variable limit.
const kpiChunk = 500

type kpiRow struct {
	ActivityID int64  `db:"activity_id"`
	UserID     int64  `db:"user_id"`
	Name       string `db:"name"`
	Value      int    `db:"value"`
	UpdatedAt  int64  `db:"updated_at"`
}

// SaveKPIs replaces the stored KPIs of the activity with set.
func (s *Store) SaveKPIs(ctx context.Context, activityID int64, set kpi.Set) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM kpis WHERE activity_id=?`, activityID); err != nil {
		return err
	}
	now := time.Now().Unix()
	var rows []kpiRow
	for _, u := range set.Users() {
		for name, v := range set.Flatten(u) {
			rows = append(rows, kpiRow{ActivityID: activityID, UserID: u, Name: name, Value: v, UpdatedAt: now})
		}
	}
	for len(rows) > 0 {
		n := min(len(rows), kpiChunk)
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO kpis(activity_id, user_id, name, value, updated_at)
		  VALUES(:activity_id, :user_id, :name, :value, :updated_at)`, rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
	}
	return tx.Commit()
}

// LoadKPIs returns user -> name -> value for the activity.
func (s *Store) LoadKPIs(ctx context.Context, activityID int64) (map[int64]map[string]int, error) {
	var rows []kpiRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT activity_id, user_id, name, value, updated_at FROM kpis WHERE activity_id=? ORDER BY user_id, name`, activityID); err != nil {
		return nil, err
	}
	out := map[int64]map[string]int{}
	for _, r := range rows {
		if out[r.UserID] == nil {
			out[r.UserID] = map[string]int{}
		}
		out[r.UserID][r.Name] = r.Value
	}
	return out, nil
}
