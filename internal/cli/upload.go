package cli

import (
	"context"

	"datasync/internal/config"
	"datasync/internal/dataset"
	"datasync/internal/remote"
	"datasync/internal/transfer"
)

// Upload compresses the dataset and sends it to cfg.Webserver.
func Upload(ctx context.Context, env Env, cfg config.Config, id dataset.ID) error {
	env = env.withDefaults()

	transport, err := newTransport(ctx, env, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			env.Log.WithError(err).Warn("Failed to close transport")
		}
	}()

	uploader := &transfer.Uploader{
		Layout:    env.Layout,
		Fs:        env.Fs,
		Archiver:  newArchiver(env, cfg),
		Transport: transport,
		Clock:     env.Clock,
		Log:       env.Log,
		Strict:    cfg.Strict,
	}
	return uploader.Upload(ctx, cfg.WebDir, id, cfg.Refresh)
}

func newTransport(ctx context.Context, env Env, cfg config.Config) (remote.Transport, error) {
	switch config.Transport(cfg.Transport) {
	case config.TransportSFTP:
		t, err := remote.DialSFTP(ctx, cfg.Webserver, remote.SSHOptions{
			KeyFile:    cfg.SSH.KeyFile,
			KnownHosts: cfg.SSH.KnownHosts,
			Insecure:   cfg.SSH.Insecure,
		})
		if err != nil {
			return nil, err
		}
		t.Fs = env.Fs
		return t, nil
	case config.TransportBucket:
		store, err := openStore(ctx, env, cfg)
		if err != nil {
			return nil, err
		}
		return remote.Bucket{Store: store, Fs: env.Fs, WebRoot: cfg.WebDir}, nil
	}
	return remote.Rsync{Runner: env.Runner, Host: cfg.Webserver}, nil
}
