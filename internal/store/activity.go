package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

var activityColumns = []string{
	"id", "user_id", "course_id", "question_id", "is_correct",
	"problem_number_type", "topics", "skills", "created_at",
}

// activityRepo implements ActivityRepo.
type activityRepo struct {
	s *Store
}

func (r *activityRepo) Append(ctx context.Context, a *Activity) error {
	topics, err := jsonArg(a.Topics)
	if err != nil {
		return err
	}
	skills, err := jsonArg(a.Skills)
	if err != nil {
		return err
	}
	a.CreatedAt = stamp(a.CreatedAt)

	id, err := r.s.insert(ctx, StudentActivityTable.Name,
		activityColumns[1:],
		[]any{
			a.UserID, nullString(a.CourseID), a.QuestionID, a.IsCorrect,
			nullInt(a.ProblemNumberType), topics, skills, a.CreatedAt,
		})
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *activityRepo) List(ctx context.Context, q ActivityQuery) ([]Activity, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", q.UserID)}
	if q.CourseID != "" {
		preds = append(preds, entsql.Or(
			entsql.EQ("course_id", q.CourseID),
			entsql.IsNull("course_id"),
		))
	}
	if !q.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", q.From.UTC()))
	}
	if !q.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", q.To.UTC()))
	}
	if q.OnlyIncorrect {
		preds = append(preds, entsql.EQ("is_correct", false))
	}

	sel := r.s.selector(StudentActivityTable.Name, activityColumns...).
		Where(entsql.And(preds...)).
		OrderBy("created_at", "id")
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var (
			a       Activity
			course  sql.NullString
			ptype   sql.NullInt64
			topics  sql.NullString
			skills  sql.NullString
			correct sql.NullBool
		)
		if err := rows.Scan(&a.ID, &a.UserID, &course, &a.QuestionID, &correct,
			&ptype, &topics, &skills, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.CourseID = course.String
		a.IsCorrect = correct.Valid && correct.Bool
		a.ProblemNumberType = int(ptype.Int64)
		a.Topics = decodeStrings(topics)
		a.Skills = decodeInts(skills)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}
