package blockstore

import (
	"context"
	"database/sql"
	"fmt"

	"httpay/db"
	"httpay/errors"
	"httpay/logx"
	"httpay/types"
)

// maxAppendAttempts bounds the optimistic retry loop for id assignment.
// Each retry means another writer won the race for the same id, so the
// loop only spins under heavy contention.
const maxAppendAttempts = 50

// BlockStore is the append-only block log. IDs are assigned as
// current max + 1 inside the insert itself; a concurrent writer that
// computed the same id loses with a unique violation and the append is
// retried, which keeps the sequence contiguous even when transactions
// roll back (a database sequence would leave gaps there).
type BlockStore struct {
	sqlDB     *sql.DB
	txRetries int
}

func NewBlockStore(sqlDB *sql.DB, txRetries int) *BlockStore {
	return &BlockStore{sqlDB: sqlDB, txRetries: txRetries}
}

// Append assigns the next sequential id to payload and inserts it,
// returning the assigned id.
func (s *BlockStore) Append(ctx context.Context, payload []byte) (int64, error) {
	if len(payload) == 0 {
		return 0, errors.Invalidf("block payload must be non-empty")
	}

	var id int64
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err := db.RunInTx(ctx, s.sqlDB, s.txRetries, func(tx *sql.Tx) error {
			return tx.QueryRowContext(ctx,
				`INSERT INTO blocks(id, payload)
				 SELECT COALESCE(MAX(id), 0) + 1, $1 FROM blocks
				 RETURNING id`,
				payload).Scan(&id)
		})
		if err == nil {
			logx.Debug("BLOCKSTORE", fmt.Sprintf("appended block %d (%d bytes)", id, len(payload)))
			return id, nil
		}
		if db.IsUniqueViolation(err) {
			continue
		}
		if errors.CodeOf(err) != "" {
			return 0, err
		}
		return 0, errors.Storage("failed to append block", err)
	}

	return 0, errors.Storage(fmt.Sprintf("block id contention: gave up after %d attempts", maxAppendAttempts), nil)
}

// Block fetches one block by id.
func (s *BlockStore) Block(ctx context.Context, id int64) (*types.Block, error) {
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM blocks WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.Invalidf("block %d does not exist", id)
	}
	if err != nil {
		return nil, errors.Storage("failed to read block", err)
	}
	return &types.Block{ID: id, Payload: payload}, nil
}

// MaxID returns the id of the newest block, or 0 when the log is empty.
func (s *BlockStore) MaxID(ctx context.Context) (int64, error) {
	var max int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM blocks`).Scan(&max)
	if err != nil {
		return 0, errors.Storage("failed to read block log head", err)
	}
	return max, nil
}
