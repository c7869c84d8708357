package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

// homeworkRepo implements HomeworkRepo.
type homeworkRepo struct {
	s *Store
}

func (r *homeworkRepo) Append(ctx context.Context, h *HomeworkProgress) error {
	h.CreatedAt = stamp(h.CreatedAt)
	var correct any
	if h.IsCorrect != nil {
		correct = *h.IsCorrect
	}
	id, err := r.s.insert(ctx, HomeworkProgressTable.Name,
		[]string{"user_id", "question_id", "homework_name", "is_correct", "completion_status", "created_at"},
		[]any{h.UserID, h.QuestionID, nullString(h.HomeworkName), correct, nullString(h.CompletionStatus), h.CreatedAt})
	if err != nil {
		return fmt.Errorf("save homework progress: %w", err)
	}
	h.ID = id
	return nil
}

func (r *homeworkRepo) ForQuestions(ctx context.Context, userID, homeworkName string, questionIDs []string) ([]HomeworkProgress, error) {
	questionIDs = lo.Uniq(lo.Compact(questionIDs))
	if len(questionIDs) == 0 {
		return nil, nil
	}

	preds := []*entsql.Predicate{
		entsql.EQ("user_id", userID),
		entsql.In("question_id", lo.ToAnySlice(questionIDs)...),
	}
	if homeworkName != "" {
		preds = append(preds, entsql.EQ("homework_name", homeworkName))
	}

	sel := r.s.selector(HomeworkProgressTable.Name,
		"id", "user_id", "question_id", "homework_name", "is_correct", "completion_status", "created_at").
		Where(entsql.And(preds...)).
		OrderBy("created_at", "id")

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query homework progress: %w", err)
	}
	defer rows.Close()

	var out []HomeworkProgress
	for rows.Next() {
		var (
			h       HomeworkProgress
			name    sql.NullString
			correct sql.NullBool
			status  sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.QuestionID, &name, &correct, &status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan homework progress: %w", err)
		}
		h.HomeworkName = name.String
		h.CompletionStatus = status.String
		if correct.Valid {
			h.IsCorrect = lo.ToPtr(correct.Bool)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate homework progress: %w", err)
	}
	return out, nil
}
