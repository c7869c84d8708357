package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// taskRepo implements TaskRepo.
type taskRepo struct {
	s *Store
}

func (r *taskRepo) Append(ctx context.Context, t *TaskRecord) error {
	t.CreatedAt = stamp(t.CreatedAt)
	id, err := r.s.insert(ctx, TasksTable.Name,
		[]string{"user_id", "course_id", "hardcode_task", "task", "created_at"},
		[]any{t.UserID, t.CourseID, t.HardcodeTask, nullString(t.Task), t.CreatedAt})
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	t.ID = id
	return nil
}

func (r *taskRepo) Latest(ctx context.Context, userID, courseID string, n int) ([]TaskRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	sel := r.s.selector(TasksTable.Name, "id", "user_id", "course_id", "hardcode_task", "task", "created_at").
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("course_id", courseID),
		)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(n)

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var (
			t        TaskRecord
			hardcode sql.NullString
			task     sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.CourseID, &hardcode, &task, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.HardcodeTask = hardcode.String
		t.Task = task.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}
