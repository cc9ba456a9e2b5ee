package store

import (
	"context"
	"errors"
	"time"

	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/games"
	"github.com/google/uuid"
)

const eventColumns = `event_id, uid, before_snapshot_id, after_snapshot_id, timestamp, game_length, xp_progress,
	legend, tracker1_code, tracker1_grouping, tracker1_mode, tracker1_value, tracker2_code, tracker2_grouping,
	tracker2_mode, tracker2_value, tracker3_code, tracker3_grouping, tracker3_mode, tracker3_value,
	trackers_shifted, created_on`

const saveGameEvent = `INSERT INTO game_event (` + eventColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING`

// SaveGameEvent inserts an event unless one with the same event id or bounding snapshot pair
// already exists. Existing rows are never updated. Returns true when a new row was written.
func (q *Queries) SaveGameEvent(ctx context.Context, event games.GameEvent) (bool, error) {
	createdOn := event.CreatedOn
	if createdOn.IsZero() {
		createdOn = time.Now()
	}

	args := []any{
		event.EventID.String(),
		event.UID,
		event.BeforeID.String(),
		event.AfterID.String(),
		event.Timestamp,
		event.GameLength,
		event.XPProgress,
		string(event.Legend),
	}

	for _, tracker := range event.Trackers {
		args = append(args, tracker.Code, string(tracker.Grouping), string(tracker.Mode), tracker.Value)
	}

	args = append(args, boolInt(event.TrackersShifted), createdOn.Unix())

	result, err := q.db.ExecContext(ctx, saveGameEvent, args...)
	if err != nil {
		return false, dbErr(err)
	}

	affected, errAffected := result.RowsAffected()
	if errAffected != nil {
		return false, dbErr(errAffected)
	}

	return affected > 0, nil
}

const gameEventsByPlayer = `SELECT ` + eventColumns + `
FROM game_event WHERE uid = ? ORDER BY timestamp`

// GameEventsByPlayer returns a players reconstructed matches, oldest first.
func (q *Queries) GameEventsByPlayer(ctx context.Context, uid int64) ([]games.GameEvent, error) {
	rows, err := q.db.QueryContext(ctx, gameEventsByPlayer, uid)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var events []games.GameEvent
	for rows.Next() {
		event, errScan := scanGameEvent(rows)
		if errScan != nil {
			return nil, errScan
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return events, nil
}

func scanGameEvent(row rowScanner) (games.GameEvent, error) {
	var (
		event     games.GameEvent
		eventID   string
		beforeID  string
		afterID   string
		legend    string
		groupings [3]string
		modes     [3]string
		shifted   int
		createdOn int64
	)

	if err := row.Scan(
		&eventID,
		&event.UID,
		&beforeID,
		&afterID,
		&event.Timestamp,
		&event.GameLength,
		&event.XPProgress,
		&legend,
		&event.Trackers[0].Code, &groupings[0], &modes[0], &event.Trackers[0].Value,
		&event.Trackers[1].Code, &groupings[1], &modes[1], &event.Trackers[1].Value,
		&event.Trackers[2].Code, &groupings[2], &modes[2], &event.Trackers[2].Value,
		&shifted,
		&createdOn,
	); err != nil {
		return games.GameEvent{}, dbErr(err)
	}

	var errParse error
	event.EventID, errParse = uuid.Parse(eventID)
	if errParse != nil {
		return games.GameEvent{}, errors.Join(errParse, ErrQuery)
	}

	event.BeforeID, errParse = uuid.Parse(beforeID)
	if errParse != nil {
		return games.GameEvent{}, errors.Join(errParse, ErrQuery)
	}

	event.AfterID, errParse = uuid.Parse(afterID)
	if errParse != nil {
		return games.GameEvent{}, errors.Join(errParse, ErrQuery)
	}

	event.Legend = cdata.Legend(legend)
	for slot := range event.Trackers {
		event.Trackers[slot].Slot = slot + 1
		event.Trackers[slot].Grouping = cdata.Grouping(groupings[slot])
		event.Trackers[slot].Mode = cdata.Mode(modes[slot])
	}
	event.TrackersShifted = shifted == 1
	event.CreatedOn = time.Unix(createdOn, 0)

	return event, nil
}

const gameEventCount = `SELECT count(*) FROM game_event WHERE uid = ?`

func (q *Queries) GameEventCount(ctx context.Context, uid int64) (int64, error) {
	var count int64
	if err := q.db.QueryRowContext(ctx, gameEventCount, uid).Scan(&count); err != nil {
		return 0, dbErr(err)
	}

	return count, nil
}
