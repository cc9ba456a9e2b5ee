package store

import (
	"context"
	"errors"

	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/google/uuid"
)

const snapshotColumns = `snapshot_id, uid, platform, timestamp, name, online, joinable, party_full, party_in_match,
	in_match, rank_score, arena_score, account_level, account_progress, character_code, character_skin, frame,
	stance, intro_quip, badge1, badge1_tier, badge2, badge2_tier, badge3, badge3_tier, tracker1, tracker1_value,
	tracker2, tracker2_value, tracker3, tracker3_value, ban_reason, ban_seconds`

// The WHERE NOT EXISTS guard keeps timestamps strictly increasing per player.
const saveSnapshot = `INSERT INTO snapshot (` + snapshotColumns + `)
SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM snapshot WHERE uid = ? AND timestamp >= ?)`

// SaveSnapshot appends a snapshot. Snapshots not strictly newer than the latest stored one for the
// same player are rejected with ErrOutOfOrder.
func (q *Queries) SaveSnapshot(ctx context.Context, snapshot respawn.Snapshot) error {
	result, err := q.db.ExecContext(ctx, saveSnapshot,
		snapshot.SnapshotID.String(),
		snapshot.UID,
		string(snapshot.Platform),
		snapshot.Timestamp,
		snapshot.Name,
		boolInt(snapshot.Online),
		boolInt(snapshot.Joinable),
		boolInt(snapshot.PartyFull),
		boolInt(snapshot.PartyInMatch),
		boolInt(snapshot.InMatch),
		snapshot.RankScore,
		snapshot.ArenaScore,
		snapshot.AccountLevel,
		snapshot.AccountProgress,
		snapshot.Character,
		snapshot.CharacterSkin,
		snapshot.Frame,
		snapshot.Stance,
		snapshot.IntroQuip,
		snapshot.Badges[0].Code, snapshot.Badges[0].Tier,
		snapshot.Badges[1].Code, snapshot.Badges[1].Tier,
		snapshot.Badges[2].Code, snapshot.Badges[2].Tier,
		snapshot.Trackers[0].Code, snapshot.Trackers[0].Value,
		snapshot.Trackers[1].Code, snapshot.Trackers[1].Value,
		snapshot.Trackers[2].Code, snapshot.Trackers[2].Value,
		snapshot.BanReason,
		snapshot.BanSeconds,
		snapshot.UID,
		snapshot.Timestamp,
	)
	if err != nil {
		return dbErr(err)
	}

	affected, errAffected := result.RowsAffected()
	if errAffected != nil {
		return dbErr(errAffected)
	}

	if affected == 0 {
		return ErrOutOfOrder
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (respawn.Snapshot, error) {
	var (
		snapshot     respawn.Snapshot
		snapshotID   string
		platform     string
		online       int
		joinable     int
		partyFull    int
		partyInMatch int
		inMatch      int
	)

	if err := row.Scan(
		&snapshotID,
		&snapshot.UID,
		&platform,
		&snapshot.Timestamp,
		&snapshot.Name,
		&online,
		&joinable,
		&partyFull,
		&partyInMatch,
		&inMatch,
		&snapshot.RankScore,
		&snapshot.ArenaScore,
		&snapshot.AccountLevel,
		&snapshot.AccountProgress,
		&snapshot.Character,
		&snapshot.CharacterSkin,
		&snapshot.Frame,
		&snapshot.Stance,
		&snapshot.IntroQuip,
		&snapshot.Badges[0].Code, &snapshot.Badges[0].Tier,
		&snapshot.Badges[1].Code, &snapshot.Badges[1].Tier,
		&snapshot.Badges[2].Code, &snapshot.Badges[2].Tier,
		&snapshot.Trackers[0].Code, &snapshot.Trackers[0].Value,
		&snapshot.Trackers[1].Code, &snapshot.Trackers[1].Value,
		&snapshot.Trackers[2].Code, &snapshot.Trackers[2].Value,
		&snapshot.BanReason,
		&snapshot.BanSeconds,
	); err != nil {
		return respawn.Snapshot{}, dbErr(err)
	}

	parsedID, errID := uuid.Parse(snapshotID)
	if errID != nil {
		return respawn.Snapshot{}, errors.Join(errID, ErrQuery)
	}

	snapshot.SnapshotID = parsedID
	snapshot.Platform = respawn.Platform(platform)
	snapshot.Online = online == 1
	snapshot.Joinable = joinable == 1
	snapshot.PartyFull = partyFull == 1
	snapshot.PartyInMatch = partyInMatch == 1
	snapshot.InMatch = inMatch == 1

	return snapshot, nil
}

const latestSnapshot = `SELECT ` + snapshotColumns + `
FROM snapshot WHERE uid = ? ORDER BY timestamp DESC LIMIT 1`

// LatestSnapshot returns the most recent stored snapshot for a player, or ErrNoResult.
func (q *Queries) LatestSnapshot(ctx context.Context, uid int64) (respawn.Snapshot, error) {
	return scanSnapshot(q.db.QueryRowContext(ctx, latestSnapshot, uid))
}

const snapshotsByPlayer = `SELECT ` + snapshotColumns + `
FROM snapshot WHERE uid = ? ORDER BY timestamp`

// SnapshotsByPlayer returns a players full history in ascending timestamp order.
func (q *Queries) SnapshotsByPlayer(ctx context.Context, uid int64) ([]respawn.Snapshot, error) {
	rows, err := q.db.QueryContext(ctx, snapshotsByPlayer, uid)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var snapshots []respawn.Snapshot
	for rows.Next() {
		snapshot, errScan := scanSnapshot(rows)
		if errScan != nil {
			return nil, errScan
		}

		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return snapshots, nil
}

const snapshotPlayers = `SELECT DISTINCT uid FROM snapshot ORDER BY uid`

// SnapshotPlayers returns every player uid with at least one stored snapshot.
func (q *Queries) SnapshotPlayers(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, snapshotPlayers)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var uids []int64
	for rows.Next() {
		var uid int64
		if errScan := rows.Scan(&uid); errScan != nil {
			return nil, dbErr(errScan)
		}

		uids = append(uids, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return uids, nil
}

const snapshotCount = `SELECT count(*) FROM snapshot WHERE uid = ?`

func (q *Queries) SnapshotCount(ctx context.Context, uid int64) (int64, error) {
	var count int64
	if err := q.db.QueryRowContext(ctx, snapshotCount, uid).Scan(&count); err != nil {
		return 0, dbErr(err)
	}

	return count, nil
}
