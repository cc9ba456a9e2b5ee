package store

import (
	"context"
	"time"
)

// IngestionTask holds the per player polling counters.
type IngestionTask struct {
	UID             int64
	PlayerName      string
	RecordsFetched  int64
	RecordsInserted int64
	FetchErrors     int64
	RateLimits      int64
	LastUpdate      time.Time
}

// Counter names a single ingestion task column that can be incremented.
type Counter int

const (
	CounterFetched Counter = iota
	CounterInserted
	CounterFetchError
	CounterRateLimited
)

const ensureTask = `INSERT INTO ingestion_task (uid, player_name, last_update) VALUES (?, ?, ?)
ON CONFLICT (uid) DO UPDATE SET player_name = excluded.player_name`

// EnsureTask creates the counter row for a player if missing and refreshes its display name.
func (q *Queries) EnsureTask(ctx context.Context, uid int64, name string) error {
	_, err := q.db.ExecContext(ctx, ensureTask, uid, name, time.Now().Unix())

	return dbErr(err)
}

var incrementQueries = map[Counter]string{ //nolint:gochecknoglobals
	CounterFetched:     `UPDATE ingestion_task SET records_fetched = records_fetched + 1, last_update = ? WHERE uid = ?`,
	CounterInserted:    `UPDATE ingestion_task SET records_inserted = records_inserted + 1, last_update = ? WHERE uid = ?`,
	CounterFetchError:  `UPDATE ingestion_task SET fetch_errors = fetch_errors + 1, last_update = ? WHERE uid = ?`,
	CounterRateLimited: `UPDATE ingestion_task SET rate_limits = rate_limits + 1, last_update = ? WHERE uid = ?`,
}

// Increment bumps a single counter for a player. Unknown players are ignored.
func (q *Queries) Increment(ctx context.Context, uid int64, counter Counter) error {
	query, found := incrementQueries[counter]
	if !found {
		return ErrQuery
	}

	_, err := q.db.ExecContext(ctx, query, time.Now().Unix(), uid)

	return dbErr(err)
}

const tasks = `SELECT uid, player_name, records_fetched, records_inserted, fetch_errors, rate_limits, last_update
FROM ingestion_task ORDER BY player_name, uid`

func (q *Queries) Tasks(ctx context.Context) ([]IngestionTask, error) {
	rows, err := q.db.QueryContext(ctx, tasks)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var results []IngestionTask
	for rows.Next() {
		var (
			task       IngestionTask
			lastUpdate int64
		)
		if errScan := rows.Scan(&task.UID, &task.PlayerName, &task.RecordsFetched, &task.RecordsInserted,
			&task.FetchErrors, &task.RateLimits, &lastUpdate); errScan != nil {
			return nil, dbErr(errScan)
		}

		task.LastUpdate = time.Unix(lastUpdate, 0)
		results = append(results, task)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return results, nil
}
