package postgres

import (
	"context"
	"fmt"

	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// PoolOption は pgxpool.Config を追加で調整します。
type PoolOption func(*pgxpool.Config)

// WithQueryLogger は実行したクエリを logger に debug レベルで出力します。
func WithQueryLogger(logger zerolog.Logger) PoolOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger{logger: logger.With().Str("component", "postgres").Logger()},
			LogLevel: tracelog.LogLevelDebug,
		}
	}
}

// BuildPoolConfig は database 設定から pgxpool.Config を構築します。
func BuildPoolConfig(cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		if poolCfg.MinConns > poolCfg.MaxConns {
			poolCfg.MinConns = poolCfg.MaxConns
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	for _, opt := range opts {
		opt(poolCfg)
	}

	return poolCfg, nil
}

// NewPool は pgxpool.Pool を生成し疎通確認を行います。
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

type queryLogger struct {
	logger zerolog.Logger
}

func (l queryLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var ev *zerolog.Event
	switch level {
	case tracelog.LogLevelTrace:
		ev = l.logger.Trace()
	case tracelog.LogLevelDebug:
		ev = l.logger.Debug()
	case tracelog.LogLevelInfo:
		ev = l.logger.Info()
	case tracelog.LogLevelWarn:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Error()
	}
	ev.Ctx(ctx).Fields(data).Msg(msg)
}
