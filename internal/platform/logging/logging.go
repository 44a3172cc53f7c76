package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config はロガーの設定です。
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New は Config から zerolog.Logger を生成します。Format が console なら人が読みやすい形式で出力します。
func New(cfg Config) (zerolog.Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	switch cfg.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
