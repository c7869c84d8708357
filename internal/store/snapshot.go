package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo.
type snapshotRepo struct {
	s *Store
}

func (r *snapshotRepo) Append(ctx context.Context, snap *MasterySnapshot) error {
	snap.RunTimestamp = stamp(snap.RunTimestamp)
	id, err := r.s.insert(ctx, MasterySnapshotsTable.Name,
		[]string{"user_id", "course_id", "raw_data", "run_timestamp"},
		[]any{snap.UserID, snap.CourseID, rawArg(snap.RawData), snap.RunTimestamp})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	snap.ID = id
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, userID, courseID string, n int) ([]MasterySnapshot, error) {
	if n <= 0 {
		return nil, nil
	}
	sel := r.s.selector(MasterySnapshotsTable.Name, "id", "user_id", "course_id", "raw_data", "run_timestamp").
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("course_id", courseID),
		)).
		OrderBy(entsql.Desc("run_timestamp"), entsql.Desc("id")).
		Limit(n)

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []MasterySnapshot
	for rows.Next() {
		var (
			snap MasterySnapshot
			raw  sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.CourseID, &raw, &snap.RunTimestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.RawData = rawJSON(raw)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
