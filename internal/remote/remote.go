// Package remote moves archives between this machine and the webserver.
package remote

import (
	"context"

	"datasync/internal/dataset"
)

// Transport creates the remote archive directory and sends archives into it.
type Transport interface {
	// EnsureDir creates dir on the remote side, including parents. It
	// succeeds if dir already exists.
	EnsureDir(ctx context.Context, dir string) error
	// Send copies the local file into remoteDir under its base name. Unless
	// overwrite is set, a file already present at the destination is left
	// untouched.
	Send(ctx context.Context, local, remoteDir string, overwrite bool) error
	Close() error
}

// Downloader retrieves a published archive.
type Downloader interface {
	Download(ctx context.Context, id dataset.ID, dest string) error
}
