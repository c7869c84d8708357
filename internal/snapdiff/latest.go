package snapdiff

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/store"
)

// Status tells whether a diff could be computed.
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
)

// Result is the diff of a student's two most recent snapshots.
type Result struct {
	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	RecentAt   *time.Time `json:"recent_at,omitempty"`
	PreviousAt *time.Time `json:"previous_at,omitempty"`
	Entries    []Entry    `json:"entries"`
}

// NoData reports whether the result carries no diff.
func (r Result) NoData() bool {
	return r.Status != StatusOK
}

func noData(reason string) Result {
	return Result{Status: StatusNoData, Reason: reason, Entries: []Entry{}}
}

// Differ loads snapshots from the store and diffs them.
type Differ struct {
	snapshots store.SnapshotRepo
	limit     int
	log       *logger.Logger
}

// NewDiffer creates a differ. limit <= 0 uses MaxEntries.
func NewDiffer(snapshots store.SnapshotRepo, limit int, log *logger.Logger) *Differ {
	if log == nil {
		log = logger.Nop()
	}
	return &Differ{snapshots: snapshots, limit: limit, log: log}
}

// Latest diffs the two most recent snapshots. Missing snapshots and
// unreadable blobs yield a no-data result; they are logged, never
// returned.
func (d *Differ) Latest(ctx context.Context, userID, courseID string) Result {
	log := d.log.With("user_id", userID, "course_id", courseID, "stage", "snapdiff")

	snaps, err := d.snapshots.Latest(ctx, userID, courseID, 2)
	if err != nil {
		log.Warn("snapshots unavailable", "error", err)
		return noData("snapshots unavailable")
	}
	if len(snaps) < 2 {
		log.Debug("not enough snapshots to diff", "count", len(snaps))
		return noData("not enough snapshots")
	}

	recent, previous := snaps[0], snaps[1]
	entries, err := Diff(recent.RawData, previous.RawData, d.limit)
	if err != nil {
		log.Warn("snapshot diff failed",
			"recent_id", recent.ID,
			"previous_id", previous.ID,
			"error", err,
		)
		return noData("unreadable snapshot")
	}

	return Result{
		Status:     StatusOK,
		RecentAt:   &recent.RunTimestamp,
		PreviousAt: &previous.RunTimestamp,
		Entries:    entries,
	}
}

// Against diffs a not yet stored snapshot blob, taken at recentAt, with the
// student's newest stored snapshot.
func (d *Differ) Against(ctx context.Context, userID, courseID string, recent json.RawMessage, recentAt time.Time) Result {
	log := d.log.With("user_id", userID, "course_id", courseID, "stage", "snapdiff")

	snaps, err := d.snapshots.Latest(ctx, userID, courseID, 1)
	if err != nil {
		log.Warn("snapshots unavailable", "error", err)
		return noData("snapshots unavailable")
	}
	if len(snaps) == 0 {
		log.Debug("no previous snapshot to diff against")
		return noData("no previous snapshot")
	}

	previous := snaps[0]
	entries, err := Diff(recent, previous.RawData, d.limit)
	if err != nil {
		log.Warn("snapshot diff failed", "previous_id", previous.ID, "error", err)
		return noData("unreadable snapshot")
	}

	return Result{
		Status:     StatusOK,
		RecentAt:   &recentAt,
		PreviousAt: &previous.RunTimestamp,
		Entries:    entries,
	}
}
