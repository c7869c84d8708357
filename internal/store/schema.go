package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// textSize maps string columns to TEXT on every dialect.
const textSize = 2147483647

var (
	// StudentActivityColumns holds the columns of the "student_activity" table.
	StudentActivityColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "course_id", Type: field.TypeString, Nullable: true},
		{Name: "question_id", Type: field.TypeString},
		{Name: "is_correct", Type: field.TypeBool, Default: false},
		{Name: "problem_number_type", Type: field.TypeInt, Nullable: true},
		{Name: "topics", Type: field.TypeJSON, Nullable: true},
		{Name: "skills", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// StudentActivityTable holds the schema information for the "student_activity" table.
	StudentActivityTable = &schema.Table{
		Name:       "student_activity",
		Columns:    StudentActivityColumns,
		PrimaryKey: []*schema.Column{StudentActivityColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "studentactivity_user_id_created_at",
				Columns: []*schema.Column{StudentActivityColumns[1], StudentActivityColumns[8]},
			},
		},
	}

	// MasterySnapshotsColumns holds the columns of the "mastery_snapshots" table.
	MasterySnapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "course_id", Type: field.TypeString},
		{Name: "raw_data", Type: field.TypeJSON, Nullable: true},
		{Name: "run_timestamp", Type: field.TypeTime},
	}
	// MasterySnapshotsTable holds the schema information for the "mastery_snapshots" table.
	MasterySnapshotsTable = &schema.Table{
		Name:       "mastery_snapshots",
		Columns:    MasterySnapshotsColumns,
		PrimaryKey: []*schema.Column{MasterySnapshotsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "masterysnapshot_user_id_course_id_run_timestamp",
				Columns: []*schema.Column{MasterySnapshotsColumns[1], MasterySnapshotsColumns[2], MasterySnapshotsColumns[4]},
			},
		},
	}

	// ProfilesColumns holds the columns of the "profiles" table.
	ProfilesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "homework", Type: field.TypeJSON, Nullable: true},
		{Name: "homework_name", Type: field.TypeString, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ProfilesTable holds the schema information for the "profiles" table.
	ProfilesTable = &schema.Table{
		Name:       "profiles",
		Columns:    ProfilesColumns,
		PrimaryKey: []*schema.Column{ProfilesColumns[0]},
	}

	// TasksColumns holds the columns of the "stories_and_telegram" table.
	TasksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "course_id", Type: field.TypeString},
		{Name: "hardcode_task", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "task", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// TasksTable holds the schema information for the "stories_and_telegram" table.
	TasksTable = &schema.Table{
		Name:       "stories_and_telegram",
		Columns:    TasksColumns,
		PrimaryKey: []*schema.Column{TasksColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "task_user_id_course_id_created_at",
				Columns: []*schema.Column{TasksColumns[1], TasksColumns[2], TasksColumns[5]},
			},
		},
	}

	// FipiBankColumns holds the columns of the "oge_math_fipi_bank" table.
	FipiBankColumns = []*schema.Column{
		{Name: "question_id", Type: field.TypeString},
		{Name: "problem_number_type", Type: field.TypeInt, Nullable: true},
		{Name: "topics", Type: field.TypeJSON, Nullable: true},
	}
	// FipiBankTable holds the schema information for the "oge_math_fipi_bank" table.
	FipiBankTable = &schema.Table{
		Name:       "oge_math_fipi_bank",
		Columns:    FipiBankColumns,
		PrimaryKey: []*schema.Column{FipiBankColumns[0]},
	}

	// SkillQuestionsColumns holds the columns of the "oge_math_skills_questions" table.
	SkillQuestionsColumns = []*schema.Column{
		{Name: "question_id", Type: field.TypeString},
		{Name: "skills", Type: field.TypeJSON, Nullable: true},
	}
	// SkillQuestionsTable holds the schema information for the "oge_math_skills_questions" table.
	SkillQuestionsTable = &schema.Table{
		Name:       "oge_math_skills_questions",
		Columns:    SkillQuestionsColumns,
		PrimaryKey: []*schema.Column{SkillQuestionsColumns[0]},
	}

	// HomeworkProgressColumns holds the columns of the "homework_progress" table.
	HomeworkProgressColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeString},
		{Name: "homework_name", Type: field.TypeString, Nullable: true},
		{Name: "is_correct", Type: field.TypeBool, Nullable: true},
		{Name: "completion_status", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// HomeworkProgressTable holds the schema information for the "homework_progress" table.
	HomeworkProgressTable = &schema.Table{
		Name:       "homework_progress",
		Columns:    HomeworkProgressColumns,
		PrimaryKey: []*schema.Column{HomeworkProgressColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "homeworkprogress_user_id_question_id",
				Columns: []*schema.Column{HomeworkProgressColumns[1], HomeworkProgressColumns[2]},
			},
		},
	}

	// LLMRequestEventsColumns holds the columns of the "llm_request_events" table.
	LLMRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	// LLMRequestEventsTable holds the schema information for the "llm_request_events" table.
	LLMRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LLMRequestEventsColumns,
		PrimaryKey: []*schema.Column{LLMRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{LLMRequestEventsColumns[1]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMRequestEventsColumns[4]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		StudentActivityTable,
		MasterySnapshotsTable,
		ProfilesTable,
		TasksTable,
		FipiBankTable,
		SkillQuestionsTable,
		HomeworkProgressTable,
		LLMRequestEventsTable,
	}
)
