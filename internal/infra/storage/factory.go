package storage

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// FileSettings configures the file backend. Dir is relative to the data directory.
type FileSettings struct {
	Dir string `mapstructure:"dir" default:"library"`
}

// SQLiteSettings configures the sqlite backend. Path is relative to the data directory.
type SQLiteSettings struct {
	Path string `mapstructure:"path" default:"library.db" validate:"required"`
}

// RedisSettings configures the redis backend.
type RedisSettings struct {
	Addr     string `mapstructure:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix" default:"pocketbox:"`
}

// New creates the backend named by backend, decoding its settings.
func New(ctx context.Context, fs afero.Fs, dataDir, backend string, settings map[string]any) (Store, error) {
	zlog.Debug().Msgf("storage: creating backend: type=%s settings=%+v", backend, redact(settings))

	switch backend {
	case BackendFile, "":
		var s FileSettings
		if err := decodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return NewFileStore(fs, resolve(dataDir, s.Dir))

	case BackendSQLite:
		var s SQLiteSettings
		if err := decodeSettings(settings, &s); err != nil {
			return nil, err
		}
		path := s.Path
		if path != ":memory:" {
			path = resolve(dataDir, path)
			if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, errors.Wrap(err, "failed to create database directory")
			}
		}
		return NewSQLiteStore(path)

	case BackendRedis:
		var s RedisSettings
		if err := decodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return NewRedisStore(ctx, RedisOptions{
			Addr:     s.Addr,
			Password: s.Password,
			DB:       s.DB,
			Prefix:   s.Prefix,
		})

	default:
		return nil, errors.Newf("unsupported storage backend: %s", backend)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode storage settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set storage defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "storage settings validation failed")
	}
	return nil
}

func resolve(dataDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func redact(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if k == "password" {
			v = "***"
		}
		out[k] = v
	}
	return out
}
