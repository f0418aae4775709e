package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoSnapshot is returned when no snapshot exists for the given name.
var ErrNoSnapshot = errors.New("no snapshot found")

// Snapshot is one stored world serialization.
type Snapshot struct {
	ID        int64
	Name      string
	Tick      int64
	Data      []byte
	CreatedAt time.Time
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save stores one serialized snapshot under the given stream name.
func (r *SnapshotRepo) Save(ctx context.Context, name string, tick int64, data []byte) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO snapshots (name, tick, data) VALUES ($1, $2, $3) RETURNING id`,
		name, tick, data,
	).Scan(&id)
	return id, err
}

// Latest returns the most recent snapshot for the stream name.
func (r *SnapshotRepo) Latest(ctx context.Context, name string) (Snapshot, error) {
	var s Snapshot
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, tick, data, created_at FROM snapshots
		 WHERE name = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, name,
	).Scan(&s.ID, &s.Name, &s.Tick, &s.Data, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	return s, err
}

// Prune deletes all but the newest keep snapshots of the stream name.
func (r *SnapshotRepo) Prune(ctx context.Context, name string, keep int) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM snapshots WHERE name = $1 AND id NOT IN (
		   SELECT id FROM snapshots WHERE name = $1
		   ORDER BY created_at DESC, id DESC LIMIT $2)`,
		name, keep,
	)
	return err
}
