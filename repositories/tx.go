package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner исполняет fn внутри одной транзакции БД: либо все эффекты
// коммитятся вместе, либо ни один. Сервисы зависят от интерфейса, а не от
// *sql.DB, поэтому в тестах транзакционные юниты гоняются против фейков.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
