package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"datasync/internal/dataset"
	"datasync/pkg/object"
)

const archiveContentType = "application/gzip"

// Bucket publishes archives to object storage laid out like the web root.
type Bucket struct {
	Store object.ObjectStorage
	Fs    afero.Fs
	// WebRoot is stripped from remote paths to form object keys.
	WebRoot string
}

// EnsureDir is a no-op: buckets have no directories.
func (Bucket) EnsureDir(context.Context, string) error {
	return nil
}

func (b Bucket) Send(ctx context.Context, local, remoteDir string, overwrite bool) error {
	key := b.key(path.Join(remoteDir, filepath.Base(local)))

	if !overwrite {
		exists, err := object.Exists(ctx, b.Store, key)
		if err != nil {
			return fmt.Errorf("stat %s: %w", key, err)
		}
		if exists {
			log.WithField("key", key).Info("Object already exists in bucket, skipping")
			return nil
		}
	}

	file, err := b.Fs.Open(local)
	if err != nil {
		return err
	}
	defer file.Close()

	obj, err := b.Store.Put(ctx, key, file, archiveContentType, map[string]string{
		"source": filepath.Base(local),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.WithField("key", obj.Key).WithField("bytes", obj.Size).Info("Uploaded archive to bucket")
	return nil
}

func (b Bucket) Close() error {
	return b.Store.Close(context.Background())
}

func (b Bucket) key(remotePath string) string {
	if b.WebRoot != "" {
		if rel, ok := strings.CutPrefix(remotePath, path.Clean(b.WebRoot)+"/"); ok {
			remotePath = rel
		}
	}
	return strings.TrimLeft(remotePath, "/")
}

// BucketDownloader fetches archives from object storage.
type BucketDownloader struct {
	Store object.Reader
	Fs    afero.Fs
}

func (d BucketDownloader) Download(ctx context.Context, id dataset.ID, dest string) error {
	key := dataset.ObjectKey(id)
	log.WithField("key", key).Infof("Downloading %s from bucket", id.ArchiveName())

	_, body, err := d.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer body.Close()

	return writeFile(d.Fs, dest, body)
}

// writeFile streams r into dest. A partially written dest is removed.
func writeFile(fs afero.Fs, dest string, r io.Reader) error {
	out, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, r)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(dest)
	}
	return err
}
