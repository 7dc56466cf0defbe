package cli

import (
	"context"

	"datasync/internal/config"
	"datasync/internal/dataset"
	"datasync/internal/remote"
	"datasync/internal/transfer"
)

// Fetch downloads and unpacks the dataset published under cfg.RootURL.
func Fetch(ctx context.Context, env Env, cfg config.Config, id dataset.ID) error {
	env = env.withDefaults()

	downloader, err := newDownloader(ctx, env, cfg)
	if err != nil {
		return err
	}

	fetcher := &transfer.Fetcher{
		Layout:     env.Layout,
		Fs:         env.Fs,
		Downloader: downloader,
		Archiver:   newArchiver(env, cfg),
		Log:        env.Log,
		Strict:     cfg.Strict,
	}
	return fetcher.Fetch(ctx, id, cfg.Refresh, cfg.Purge)
}

func newDownloader(ctx context.Context, env Env, cfg config.Config) (remote.Downloader, error) {
	switch config.Downloader(cfg.Downloader) {
	case config.DownloaderHTTP:
		return remote.HTTP{Client: remote.NewHTTPClient(), RootURL: cfg.RootURL, Fs: env.Fs}, nil
	case config.DownloaderBucket:
		store, err := openStore(ctx, env, cfg)
		if err != nil {
			return nil, err
		}
		return remote.BucketDownloader{Store: store, Fs: env.Fs}, nil
	}
	return remote.Wget{Runner: env.Runner, RootURL: cfg.RootURL}, nil
}
