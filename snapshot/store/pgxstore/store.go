package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
	"github.com/screwyprof/jormprobe/snapshot"
	"github.com/screwyprof/jormprobe/snapshot/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConversionFailed  = errors.New("row conversion failed")
	ErrUpsertFailed      = errors.New("upsert operation failed")
	ErrCopyFailed        = errors.New("bulk copy operation failed")
	ErrQueryFailed       = errors.New("query failed")
	ErrNotFound          = errors.New("epoch not found")
)

// SQL statements
const (
	upsertStakeSQL = `
		INSERT INTO stake_distributions (epoch, dangling, unassigned, extra, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (epoch) DO UPDATE SET
			dangling = EXCLUDED.dangling,
			unassigned = EXCLUDED.unassigned,
			extra = EXCLUDED.extra,
			captured_at = EXCLUDED.captured_at`

	upsertRewardsSQL = `
		INSERT INTO epoch_rewards (epoch, drawn, fees, treasury, value, extra, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (epoch) DO UPDATE SET
			drawn = EXCLUDED.drawn,
			fees = EXCLUDED.fees,
			treasury = EXCLUDED.treasury,
			value = EXCLUDED.value,
			extra = EXCLUDED.extra,
			captured_at = EXCLUDED.captured_at`

	selectStakeSQL       = `SELECT epoch, dangling, unassigned, extra, captured_at FROM stake_distributions WHERE epoch = $1`
	selectStakePoolsSQL  = `SELECT pool_id, amount FROM stake_pools WHERE epoch = $1 ORDER BY pool_id`
	selectRewardsSQL     = `SELECT epoch, drawn, fees, treasury, value, extra, captured_at FROM epoch_rewards WHERE epoch = $1`
	selectPoolRewardsSQL = `SELECT pool_id, taxed, distributed FROM epoch_pool_rewards WHERE epoch = $1 ORDER BY pool_id`
	selectAccountsSQL    = `SELECT account, amount FROM epoch_account_rewards WHERE epoch = $1 ORDER BY account`
)

// Store implements snapshot.Store using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// SaveSnapshot writes the stake distribution and every reward entry in one transaction.
// Child rows of a re-saved epoch are replaced, not merged.
func (s *Store) SaveSnapshot(ctx context.Context, snap snapshot.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	if err := saveStake(ctx, tx, snap.Stake, snap.CapturedAt); err != nil {
		return err
	}
	for _, info := range snap.Rewards {
		if err := saveRewards(ctx, tx, info, snap.CapturedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}

func saveStake(ctx context.Context, tx pgx.Tx, info jormrest.StakeDistributionInfo, capturedAt time.Time) error {
	head, err := dbrow.FromStake(info, capturedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	pools, err := dbrow.StakePoolsToRows(info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	_, err = tx.Exec(ctx, upsertStakeSQL, head.Epoch, head.Dangling, head.Unassigned, head.Extra, head.CapturedAt)
	if err != nil {
		return fmt.Errorf("%w: stake_distributions: %w", ErrUpsertFailed, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stake_pools WHERE epoch = $1`, head.Epoch); err != nil {
		return fmt.Errorf("%w: stake_pools: %w", ErrUpsertFailed, err)
	}
	return copyRows(ctx, tx, "stake_pools", []string{"epoch", "pool_id", "amount"}, pools)
}

func saveRewards(ctx context.Context, tx pgx.Tx, info jormrest.EpochRewardsInfo, capturedAt time.Time) error {
	head, err := dbrow.FromRewards(info, capturedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	pools, err := dbrow.PoolRewardsToRows(info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	accounts, err := dbrow.AccountRewardsToRows(info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	_, err = tx.Exec(ctx, upsertRewardsSQL,
		head.Epoch, head.Drawn, head.Fees, head.Treasury, head.Value, head.Extra, head.CapturedAt)
	if err != nil {
		return fmt.Errorf("%w: epoch_rewards: %w", ErrUpsertFailed, err)
	}

	for _, table := range []string{"epoch_pool_rewards", "epoch_account_rewards"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE epoch = $1", head.Epoch); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUpsertFailed, table, err)
		}
	}

	err = copyRows(ctx, tx, "epoch_pool_rewards", []string{"epoch", "pool_id", "taxed", "distributed"}, pools)
	if err != nil {
		return err
	}
	return copyRows(ctx, tx, "epoch_account_rewards", []string{"epoch", "account", "amount"}, accounts)
}

func copyRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCopyFailed, table, err)
	}
	return nil
}

// StakeAt reads back the stake distribution stored for epoch
func (s *Store) StakeAt(ctx context.Context, epoch uint32) (jormrest.StakeDistributionInfo, error) {
	head, err := queryOne[dbrow.StakeDistribution](ctx, s.pool, selectStakeSQL, epoch)
	if err != nil {
		return jormrest.StakeDistributionInfo{}, err
	}
	pools, err := queryAll[dbrow.StakePool](ctx, s.pool, selectStakePoolsSQL, epoch)
	if err != nil {
		return jormrest.StakeDistributionInfo{}, err
	}

	info, err := dbrow.ToStake(head, pools)
	if err != nil {
		return jormrest.StakeDistributionInfo{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return info, nil
}

// RewardsAt reads back the rewards stored for epoch
func (s *Store) RewardsAt(ctx context.Context, epoch uint32) (jormrest.EpochRewardsInfo, error) {
	head, err := queryOne[dbrow.EpochRewards](ctx, s.pool, selectRewardsSQL, epoch)
	if err != nil {
		return jormrest.EpochRewardsInfo{}, err
	}
	pools, err := queryAll[dbrow.PoolRewards](ctx, s.pool, selectPoolRewardsSQL, epoch)
	if err != nil {
		return jormrest.EpochRewardsInfo{}, err
	}
	accounts, err := queryAll[dbrow.AccountRewards](ctx, s.pool, selectAccountsSQL, epoch)
	if err != nil {
		return jormrest.EpochRewardsInfo{}, err
	}

	info, err := dbrow.ToRewards(head, pools, accounts)
	if err != nil {
		return jormrest.EpochRewardsInfo{}, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return info, nil
}

func queryOne[T any](ctx context.Context, pool *pgxpool.Pool, sql string, epoch uint32) (T, error) {
	rows, _ := pool.Query(ctx, sql, int64(epoch))
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return row, fmt.Errorf("%w: %d", ErrNotFound, epoch)
	}
	if err != nil {
		return row, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return row, nil
}

func queryAll[T any](ctx context.Context, pool *pgxpool.Pool, sql string, epoch uint32) ([]T, error) {
	rows, _ := pool.Query(ctx, sql, int64(epoch))
	all, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return all, nil
}
