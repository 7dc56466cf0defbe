package transfer

import (
	"context"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"datasync/internal/archive"
	"datasync/internal/config"
	"datasync/internal/dataset"
	"datasync/internal/remote"
	"datasync/internal/runner"
)

// Uploader packages a dataset and publishes it on the webserver.
type Uploader struct {
	Layout    dataset.Layout
	Fs        afero.Fs
	Archiver  archive.Archiver
	Transport remote.Transport

	Clock  clockwork.Clock
	Log    log.FieldLogger
	Strict bool
}

// Upload builds the dataset's archive unless a staged one can be reused, and
// sends it to <webRoot>/data/datasets on the server.
func (u *Uploader) Upload(ctx context.Context, webRoot string, id dataset.ID, refresh config.Refresh) error {
	opts := options{Clock: u.Clock, Log: u.Log, Strict: u.Strict}
	clock := opts.clock()
	logger := opts.logger().WithField("dataset", id)

	remoteDir := dataset.RemoteDir(webRoot)
	if err := opts.check(ctx, logger, "create remote directory", u.Transport.EnsureDir(ctx, remoteDir)); err != nil {
		return err
	}

	archivePath := u.Layout.StagedArchive(id)
	if err := u.Fs.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return err
	}
	includeList := u.Layout.IncludeList(id)

	exists, err := afero.Exists(u.Fs, archivePath)
	if err != nil {
		return err
	}
	if !exists || refresh.Compression {
		start := clock.Now()
		err := u.Archiver.Create(ctx, includeList, archivePath)
		logger.Infof("Finished compressing dataset in %s", runner.FormatElapsed(clock.Since(start)))
		if err := opts.check(ctx, logger, "compress dataset", err); err != nil {
			return err
		}
	} else {
		logger.Infof("Found existing compressed file at %s, skipping....", archivePath)
		if _, ok := u.Archiver.(archive.SystemTar); ok {
			logger.Debugf("Skipped command: %s", archive.CreateCommand(includeList, archivePath))
		}
	}

	start := clock.Now()
	err = u.Transport.Send(ctx, archivePath, remoteDir, refresh.Server)
	logger.Infof("Finished transferring features in %s", runner.FormatElapsed(clock.Since(start)))
	return opts.check(ctx, logger, "transfer archive", err)
}
