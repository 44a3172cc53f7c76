package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// TxBeginner はトランザクションを開始できる接続です。pgxpool.Pool と pgxmock が満たします。
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Queryer は pgx.Tx および pgxpool.Pool と互換性のあるクエリ実行インターフェースです。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TransactionManager はコンテキストにトランザクションを載せて fn を実行します。
// 入れ子の呼び出しは外側のトランザクションをそのまま使います。
type TransactionManager struct {
	db        TxBeginner
	isolation pgx.TxIsoLevel
}

// TxOption は TransactionManager の設定です。
type TxOption func(*TransactionManager)

// WithIsolation は読み書きトランザクションの分離レベルを指定します。
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(m *TransactionManager) {
		m.isolation = level
	}
}

// IsolationFromConfig は database.isolation_level を WithIsolation に変換します。
func IsolationFromConfig(cfg config.DatabaseConfig) TxOption {
	switch cfg.IsolationLevel {
	case "serializable":
		return WithIsolation(pgx.Serializable)
	case "repeatable_read":
		return WithIsolation(pgx.RepeatableRead)
	default:
		return WithIsolation(pgx.ReadCommitted)
	}
}

// NewTransactionManager は TransactionManager を生成します。db が nil なら nil を返し、
// その場合はトランザクションなしで fn を実行します。
func NewTransactionManager(db TxBeginner, opts ...TxOption) *TransactionManager {
	if db == nil {
		return nil
	}
	m := &TransactionManager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithinReadOnly は読み取り専用トランザクションで fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithinReadWrite は読み書きトランザクションで fn を実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: m.isolation}, fn)
}

func (m *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) (err error) {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(fmt.Errorf("postgres: commit: %w", err), fmt.Errorf("postgres: rollback after commit failure: %w", rbErr))
		}
		return fmt.Errorf("postgres: commit: %w", err)
	}

	return nil
}

// TxFromContext はコンテキストに載っているトランザクションを返します。
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext はコンテキスト内にトランザクションが存在すればそれを返し、存在しなければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return fallback
}
