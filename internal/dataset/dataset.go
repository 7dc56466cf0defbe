// Package dataset names the published datasets and the files derived from them.
package dataset

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ID identifies one of the published datasets.
type ID string

const (
	CelebA     ID = "celeba"
	AFLWRecrop ID = "aflw-recrop"
	AFLWMTFL   ID = "aflw-mtfl"
	W300       ID = "300w"
)

// All lists every supported dataset in the order they are shown to users.
var All = []ID{CelebA, AFLWRecrop, AFLWMTFL, W300}

// Parse returns the ID named by s, or an error if s is not a supported dataset.
func Parse(s string) (ID, error) {
	for _, id := range All {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown dataset: %q (choose from %s)", s, Names())
}

// Names returns the supported dataset names joined for help text.
func Names() string {
	names := make([]string, len(All))
	for i, id := range All {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func (id ID) String() string {
	return string(id)
}

// ArchiveName is the file name of the dataset's compressed archive.
func (id ID) ArchiveName() string {
	return string(id) + ".tar.gz"
}

// Layout computes where dataset files live. Local paths are resolved against
// Root (the working directory when empty); remote paths always use forward
// slashes.
type Layout struct {
	Root string
}

func (l Layout) local(elem ...string) string {
	if l.Root == "" {
		return filepath.Join(elem...)
	}
	return filepath.Join(append([]string{l.Root}, elem...)...)
}

// StagedArchive is where the upload archive is built before transfer.
func (l Layout) StagedArchive(id ID) string {
	return l.local("data", "webserver-files", string(id), id.ArchiveName())
}

// IncludeList is the manifest of paths fed to archive creation.
func (l Layout) IncludeList(id ID) string {
	return l.local("misc", "datasets", strings.ToLower(string(id)), "tar_include.txt")
}

// DataDir is the root of a fetched dataset.
func (l Layout) DataDir(id ID) string {
	return l.local("data", string(id))
}

// LocalArchive is where a fetched archive is downloaded to.
func (l Layout) LocalArchive(id ID) string {
	return filepath.Join(l.DataDir(id), id.ArchiveName())
}

// RemoteDir is the directory on the webserver holding every archive.
func RemoteDir(webRoot string) string {
	return path.Join(webRoot, "data", "datasets")
}

// RemoteArchive is the full remote path of a dataset's archive.
func RemoteArchive(webRoot string, id ID) string {
	return path.Join(RemoteDir(webRoot), id.ArchiveName())
}

// DownloadURL is the public URL an archive is fetched from.
func DownloadURL(rootURL string, id ID) string {
	return strings.TrimSuffix(rootURL, "/") + "/datasets/" + id.ArchiveName()
}

// ObjectKey is the bucket key of a dataset's archive. It mirrors the layout
// under the web root so that a bucket can stand in for the webserver.
func ObjectKey(id ID) string {
	return path.Join("data", "datasets", id.ArchiveName())
}
