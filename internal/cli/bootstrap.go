package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/credential"
	"github.com/nhle/taskclient/internal/logger"
	"github.com/nhle/taskclient/internal/model"
	"github.com/nhle/taskclient/internal/session"
	"github.com/nhle/taskclient/internal/store"
)

// runtime is everything a command needs, built from the config file.
type runtime struct {
	cfg     *model.AppConfig
	state   *store.SQLiteStore
	session *session.Store
	client  *api.Client
}

// bootstrap loads the config, starts logging, opens the state database
// and the session backend, and restores any saved session.
func bootstrap(ctx context.Context, opts *rootOptions) (*runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.ephemeral {
		cfg.Session.Backend = model.BackendMemory
		cfg.State.Path = ":memory:"
	}

	if err := logger.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.GetCLILogger()

	state, err := openState(cfg.State.Path)
	if err != nil {
		log.Error().Err(err).Msg("bootstrap failed")
		return nil, errors.Join(err, logger.CloseGlobal())
	}
	abort := func(err error) (*runtime, error) {
		log.Error().Err(err).Msg("bootstrap failed")
		return nil, errors.Join(err, state.Close(), logger.CloseGlobal())
	}

	storage, err := sessionStorage(cfg, state)
	if err != nil {
		return abort(err)
	}

	sess, err := session.Open(ctx, storage, logger.GetSessionLogger())
	if err != nil {
		return abort(err)
	}

	client := api.New(cfg.API.BaseURL, sess,
		api.WithTimeout(cfg.API.Timeout),
		api.WithMaxRetries(cfg.API.MaxRetries),
		api.WithLogger(logger.GetAPILogger()),
	)

	log.Debug().
		Str("backend", cfg.Session.Backend).
		Str("api", cfg.API.BaseURL).
		Bool("authenticated", sess.IsAuthenticated()).
		Msg("bootstrapped")

	return &runtime{cfg: cfg, state: state, session: sess, client: client}, nil
}

func openState(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", path, err)
	}
	return s, nil
}

// sessionStorage picks the durable home of the token.
func sessionStorage(cfg *model.AppConfig, state *store.SQLiteStore) (session.Storage, error) {
	switch cfg.Session.Backend {
	case model.BackendKeyring:
		return credential.Open(cfg.Session.KeyringDir)
	case model.BackendSQLite:
		return state, nil
	case model.BackendMemory:
		return session.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// Close releases the state database and flushes the log file.
func (r *runtime) Close() error {
	return errors.Join(r.state.Close(), logger.CloseGlobal())
}
