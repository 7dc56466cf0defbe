// Package cli turns a resolved config.Config into a running upload or fetch.
package cli

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"datasync/internal/archive"
	"datasync/internal/config"
	"datasync/internal/dataset"
	"datasync/internal/runner"
	"datasync/pkg/object"
	"datasync/pkg/r2"
)

// Env carries the process-level dependencies of a run. Zero fields are
// replaced with the real implementations.
type Env struct {
	Fs     afero.Fs
	Runner runner.Runner
	Clock  clockwork.Clock
	Log    log.FieldLogger
	Layout dataset.Layout
	// Store replaces the bucket client built from config.Bucket.
	Store object.ObjectStorage
}

func (e Env) withDefaults() Env {
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Runner == nil {
		e.Runner = runner.Exec{}
	}
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	if e.Log == nil {
		e.Log = log.StandardLogger()
	}
	return e
}

// Run validates cfg and dispatches to the selected action.
func Run(ctx context.Context, env Env, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	id, err := dataset.Parse(cfg.Dataset)
	if err != nil {
		return err
	}
	env = env.withDefaults()

	env.Log.WithFields(log.Fields{
		"dataset": id,
		"action":  cfg.Action,
		"refresh": cfg.Refresh.String(),
	}).Debug("Starting")

	switch config.Action(cfg.Action) {
	case config.ActionUpload:
		return Upload(ctx, env, cfg, id)
	case config.ActionFetch:
		return Fetch(ctx, env, cfg, id)
	}
	return fmt.Errorf("unknown action: %s", cfg.Action)
}

func newArchiver(env Env, cfg config.Config) archive.Archiver {
	if config.Tar(cfg.Tar) == config.TarBuiltin {
		return archive.Builtin{Fs: env.Fs, Dir: env.Layout.Root}
	}
	return archive.SystemTar{Runner: env.Runner}
}

// openStore returns env.Store, or connects to the configured bucket.
func openStore(ctx context.Context, env Env, cfg config.Config) (object.ObjectStorage, error) {
	if env.Store != nil {
		return env.Store, nil
	}

	store := &r2.Storage{}
	err := store.Init(ctx, r2.Config{
		AccountID:        cfg.Bucket.AccountID,
		AccessKey:        cfg.Bucket.AccessKey,
		SecretAccessKey:  cfg.Bucket.SecretAccessKey,
		Bucket:           cfg.Bucket.Name,
		Region:           cfg.Bucket.Region,
		EndpointOverride: cfg.Bucket.Endpoint,
		PathStyle:        cfg.Bucket.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
