package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"igharvest/internal/model"
)

// ErrNotFound is returned for unknown activities.
var ErrNotFound = errors.New("not found")

type activityRow struct {
	ID          int64         `db:"id"`
	CourseID    int64         `db:"course_id"`
	Name        string        `db:"name"`
	Mode        string        `db:"mode"`
	Search      string        `db:"search"`
	StartTS     int64         `db:"start_ts"`
	EndTS       int64         `db:"end_ts"`
	LastHarvest sql.NullInt64 `db:"last_harvest"`
}

func (r activityRow) model() *model.Activity {
	return &model.Activity{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Name:        r.Name,
		Mode:        model.HarvestMode(r.Mode),
		Search:      r.Search,
		Start:       fromUnix(r.StartTS),
		End:         fromUnix(r.EndTS),
		LastHarvest: timePtr(r.LastHarvest),
	}
}

func (s *Store) Activity(ctx context.Context, id int64) (*model.Activity, error) {
	var r activityRow
	err := s.db.GetContext(ctx, &r, `SELECT id, course_id, name, mode, search, start_ts, end_ts, last_harvest FROM activities WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.model(), nil
}

// Activities lists every activity by id.
func (s *Store) Activities(ctx context.Context) ([]model.Activity, error) {
	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, course_id, name, mode, search, start_ts, end_ts, last_harvest FROM activities ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.model())
	}
	return out, nil
}

// SaveActivity inserts a (ID 0) or replaces an activity and sets its ID.
func (s *Store) SaveActivity(ctx context.Context, a *model.Activity) error {
	if a.Mode == "" {
		a.Mode = model.ModeUser
	}
	row := activityRow{
		ID: a.ID, CourseID: a.CourseID, Name: a.Name, Mode: string(a.Mode), Search: a.Search,
		StartTS: toUnix(a.Start), EndTS: toUnix(a.End), LastHarvest: nullUnix(a.LastHarvest),
	}
	q := `INSERT INTO activities(course_id, name, mode, search, start_ts, end_ts, last_harvest)
	      VALUES(:course_id, :name, :mode, :search, :start_ts, :end_ts, :last_harvest)`
	if a.ID != 0 {
		q = `INSERT INTO activities(id, course_id, name, mode, search, start_ts, end_ts, last_harvest)
		     VALUES(:id, :course_id, :name, :mode, :search, :start_ts, :end_ts, :last_harvest)
		     ON CONFLICT(id) DO UPDATE SET course_id=excluded.course_id, name=excluded.name, mode=excluded.mode,
		       search=excluded.search, start_ts=excluded.start_ts, end_ts=excluded.end_ts, last_harvest=excluded.last_harvest`
	}
	res, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return err
	}
	if a.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = id
	}
	return nil
}

func (s *Store) SetLastHarvest(ctx context.Context, id int64, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE activities SET last_harvest=? WHERE id=?`, t.Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	return nil
}
