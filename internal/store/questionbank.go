package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

// questionBankRepo implements QuestionBankRepo.
type questionBankRepo struct {
	s *Store
}

func (r *questionBankRepo) FipiQuestions(ctx context.Context, ids []string) (map[string]FipiQuestion, error) {
	out := make(map[string]FipiQuestion)
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return out, nil
	}

	sel := r.s.selector(FipiBankTable.Name, "question_id", "problem_number_type", "topics").
		Where(entsql.In("question_id", lo.ToAnySlice(ids)...))
	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query fipi bank: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q      FipiQuestion
			ptype  sql.NullInt64
			topics sql.NullString
		)
		if err := rows.Scan(&q.QuestionID, &ptype, &topics); err != nil {
			return nil, fmt.Errorf("scan fipi question: %w", err)
		}
		q.ProblemNumberType = int(ptype.Int64)
		q.Topics = decodeStrings(topics)
		out[q.QuestionID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fipi bank: %w", err)
	}
	return out, nil
}

func (r *questionBankRepo) QuestionSkills(ctx context.Context, ids []string) (map[string][]int, error) {
	out := make(map[string][]int)
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return out, nil
	}

	sel := r.s.selector(SkillQuestionsTable.Name, "question_id", "skills").
		Where(entsql.In("question_id", lo.ToAnySlice(ids)...))
	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query skill questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     string
			skills sql.NullString
		)
		if err := rows.Scan(&id, &skills); err != nil {
			return nil, fmt.Errorf("scan skill question: %w", err)
		}
		out[id] = decodeInts(skills)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skill questions: %w", err)
	}
	return out, nil
}

func (r *questionBankRepo) PutFipiQuestion(ctx context.Context, q FipiQuestion) error {
	topics, err := jsonArg(q.Topics)
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(r.s.dialect).
		Insert(FipiBankTable.Name).
		Columns("question_id", "problem_number_type", "topics").
		Values(q.QuestionID, nullInt(q.ProblemNumberType), topics).
		OnConflict(
			entsql.ConflictColumns("question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put fipi question: %w", err)
	}
	return nil
}

func (r *questionBankRepo) PutQuestionSkills(ctx context.Context, questionID string, skills []int) error {
	arg, err := jsonArg(skills)
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(r.s.dialect).
		Insert(SkillQuestionsTable.Name).
		Columns("question_id", "skills").
		Values(questionID, arg).
		OnConflict(
			entsql.ConflictColumns("question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put question skills: %w", err)
	}
	return nil
}
