package transfer

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"datasync/internal/archive"
	"datasync/internal/config"
	"datasync/internal/dataset"
	"datasync/internal/remote"
)

// Fetcher downloads and unpacks published datasets.
type Fetcher struct {
	Layout     dataset.Layout
	Fs         afero.Fs
	Downloader remote.Downloader
	Archiver   archive.Archiver

	Log    log.FieldLogger
	Strict bool
}

// Fetch makes data/<id> available locally. Nothing is done if the directory
// already exists and refresh.Data is unset. With purge, the downloaded
// archive is removed once it has been extracted.
func (f *Fetcher) Fetch(ctx context.Context, id dataset.ID, refresh config.Refresh, purge bool) error {
	opts := options{Log: f.Log, Strict: f.Strict}
	logger := opts.logger().WithField("dataset", id)

	dataDir := f.Layout.DataDir(id)
	exists, err := afero.Exists(f.Fs, dataDir)
	if err != nil {
		return err
	}
	if exists && !refresh.Data {
		logger.Infof("Found dataset directory at %s, skipping", dataDir)
		return nil
	}

	if err := f.Fs.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	archivePath := f.Layout.LocalArchive(id)
	exists, err = afero.Exists(f.Fs, archivePath)
	if err != nil {
		return err
	}
	if !exists {
		err := f.Downloader.Download(ctx, id, archivePath)
		if err := opts.check(ctx, logger, "download archive", err); err != nil {
			return err
		}
	} else {
		logger.Infof("found archive at %s, skipping...", archivePath)
	}

	if err := opts.check(ctx, logger, "extract archive", f.Archiver.Extract(ctx, archivePath)); err != nil {
		return err
	}

	if purge {
		if err := f.Fs.Remove(archivePath); err != nil {
			return fmt.Errorf("purge archive: %w", err)
		}
		logger.Infof("Removed archive %s", archivePath)
	}
	return nil
}
