package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"igharvest/internal/model"
)

type interactionRow struct {
	ActivityID     int64          `db:"activity_id"`
	Type           string         `db:"type"`
	UID            string         `db:"uid"`
	Source         string         `db:"source"`
	NativeType     string         `db:"native_type"`
	NativeFrom     string         `db:"native_from"`
	NativeFromName string         `db:"native_from_name"`
	FromID         sql.NullInt64  `db:"from_id"`
	NativeTo       string         `db:"native_to"`
	NativeToName   string         `db:"native_to_name"`
	ToID           sql.NullInt64  `db:"to_id"`
	ParentUID      string         `db:"parent_uid"`
	TS             sql.NullInt64  `db:"ts"`
	Description    string         `db:"description"`
	RawData        sql.NullString `db:"raw_data"`
}

func toInteractionRow(activityID int64, i model.Interaction) interactionRow {
	r := interactionRow{
		ActivityID:     activityID,
		Type:           string(i.Type),
		UID:            i.UID,
		Source:         i.Source,
		NativeType:     i.NativeType,
		NativeFrom:     i.NativeFrom,
		NativeFromName: i.NativeFromName,
		FromID:         nullInt(i.FromID),
		NativeTo:       i.NativeTo,
		NativeToName:   i.NativeToName,
		ToID:           nullInt(i.ToID),
		ParentUID:      i.ParentUID,
		TS:             nullUnix(i.Timestamp),
		Description:    i.Description,
	}
	if r.Source == "" {
		r.Source = model.Source
	}
	if len(i.RawData) > 0 {
		r.RawData = sql.NullString{String: string(i.RawData), Valid: true}
	}
	return r
}

func (r interactionRow) model() model.Interaction {
	i := model.Interaction{
		UID:            r.UID,
		Source:         r.Source,
		Type:           model.InteractionType(r.Type),
		NativeType:     r.NativeType,
		NativeFrom:     r.NativeFrom,
		NativeFromName: r.NativeFromName,
		FromID:         intPtr(r.FromID),
		NativeTo:       r.NativeTo,
		NativeToName:   r.NativeToName,
		ToID:           intPtr(r.ToID),
		ParentUID:      r.ParentUID,
		Timestamp:      timePtr(r.TS),
		Description:    r.Description,
	}
	if r.RawData.Valid {
		i.RawData = json.RawMessage(r.RawData.String)
	}
	return i
}

// BulkInsert upserts batch in one transaction. Rows are keyed by (activity, type, uid).
func (s *Store) BulkInsert(ctx context.Context, activityID int64, batch []model.Interaction) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO interactions(activity_id, type, uid, source, native_type, native_from, native_from_name,
	    from_id, native_to, native_to_name, to_id, parent_uid, ts, description, raw_data)
	  VALUES(:activity_id, :type, :uid, :source, :native_type, :native_from, :native_from_name,
	    :from_id, :native_to, :native_to_name, :to_id, :parent_uid, :ts, :description, :raw_data)
	  ON CONFLICT(activity_id, type, uid) DO UPDATE SET source=excluded.source, native_type=excluded.native_type,
	    native_from=excluded.native_from, native_from_name=excluded.native_from_name, from_id=excluded.from_id,
	    native_to=excluded.native_to, native_to_name=excluded.native_to_name, to_id=excluded.to_id,
	    parent_uid=excluded.parent_uid, ts=excluded.ts, description=excluded.description, raw_data=excluded.raw_data`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, i := range batch {
		if _, err := stmt.ExecContext(ctx, toInteractionRow(activityID, i)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns interactions in [start, end] ordered by time. Reactions and
// mentions carry no timestamp and take their parent's.
func (s *Store) Query(ctx context.Context, activityID int64, start, end time.Time) ([]model.Interaction, error) {
	lo, hi := minUnix, maxUnix
	if !start.IsZero() {
		lo = start.Unix()
	}
	if !end.IsZero() {
		hi = end.Unix()
	}
	var rows []interactionRow
	err := s.db.SelectContext(ctx, &rows, `
	SELECT i.activity_id AS activity_id, i.type AS type, i.uid AS uid, i.source AS source, i.native_type AS native_type,
	       i.native_from AS native_from, i.native_from_name AS native_from_name, i.from_id AS from_id,
	       i.native_to AS native_to, i.native_to_name AS native_to_name, i.to_id AS to_id,
	       i.parent_uid AS parent_uid, i.ts AS ts, i.description AS description, i.raw_data AS raw_data
	FROM interactions i
	LEFT JOIN interactions p ON p.activity_id = i.activity_id AND p.uid = i.parent_uid AND i.ts IS NULL AND p.ts IS NOT NULL
	WHERE i.activity_id = ? AND COALESCE(i.ts, p.ts) BETWEEN ? AND ?
	GROUP BY i.type, i.uid
	ORDER BY COALESCE(i.ts, p.ts), i.uid`, activityID, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]model.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) DeleteForActivity(ctx context.Context, activityID int64, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE activity_id=? AND source=?`, activityID, source)
	return err
}
