package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// profileRepo implements ProfileRepo.
type profileRepo struct {
	s *Store
}

func (r *profileRepo) Get(ctx context.Context, userID string) (*Profile, error) {
	query, args := r.s.selector(ProfilesTable.Name, "user_id", "homework", "homework_name", "updated_at").
		Where(entsql.EQ("user_id", userID)).
		Limit(1).
		Query()

	var (
		p        Profile
		homework sql.NullString
		name     sql.NullString
	)
	err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&p.UserID, &homework, &name, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.Homework = rawJSON(homework)
	p.HomeworkName = name.String
	return &p, nil
}

func (r *profileRepo) Upsert(ctx context.Context, p *Profile) error {
	p.UpdatedAt = stamp(p.UpdatedAt)
	query, args := entsql.Dialect(r.s.dialect).
		Insert(ProfilesTable.Name).
		Columns("user_id", "homework", "homework_name", "updated_at").
		Values(p.UserID, rawArg(p.Homework), nullString(p.HomeworkName), p.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
