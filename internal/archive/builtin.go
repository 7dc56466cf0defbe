package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Builtin reads and writes archives in-process, for machines without GNU tar.
type Builtin struct {
	Fs afero.Fs
	// Dir is the root include-list paths are resolved against and where
	// Extract unpacks to. Defaults to the working directory.
	Dir string
	// Verbose receives one line per archived or extracted entry. Defaults to
	// os.Stdout.
	Verbose io.Writer
}

func (b Builtin) fs() afero.Fs {
	if b.Fs == nil {
		return afero.NewOsFs()
	}
	return b.Fs
}

func (b Builtin) verbose(name string) {
	out := b.Verbose
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, name)
}

func (b Builtin) dir() string {
	if b.Dir == "" {
		return "."
	}
	return b.Dir
}

// resolve places a relative include-list path under the root.
func (b Builtin) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(b.dir(), path)
}

// Create archives every path in includeList into dest. Entries keep the names
// the include list gives them. dest itself is never archived.
func (b Builtin) Create(ctx context.Context, includeList, dest string) error {
	paths, err := ReadIncludeList(b.fs(), includeList)
	if err != nil {
		return err
	}

	out, err := b.fs().Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	self := filepath.Clean(dest)
	for _, path := range paths {
		if err := b.addPath(ctx, tw, b.resolve(path), path, self); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

// addPath writes the file or directory at path to the archive under name,
// recursing into directories. Symlinks are followed.
func (b Builtin) addPath(ctx context.Context, tw *tar.Writer, path, name, self string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == self {
		log.WithField("entry", name).Warn("File is the archive, not dumped")
		return nil
	}

	info, err := b.fs().Stat(path)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = entryName(name, info.IsDir())
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	b.verbose(header.Name)

	if info.IsDir() {
		entries, err := afero.ReadDir(b.fs(), path)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			child := filepath.Join(path, entry.Name())
			if err := b.addPath(ctx, tw, child, filepath.Join(name, entry.Name()), self); err != nil {
				return err
			}
		}
		return nil
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := b.fs().Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)
	return err
}

// entryName is the slash-separated name path is stored under. Leading slashes
// are dropped the way GNU tar does.
func entryName(path string, dir bool) string {
	name := strings.TrimLeft(filepath.ToSlash(path), "/")
	if dir && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return name
}

// Extract unpacks archive into b.Dir.
func (b Builtin) Extract(ctx context.Context, archive string) error {
	file, err := b.fs().Open(archive)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	dir := b.dir()
	// links holds the symlinks written so far. Nothing is written through them.
	links := map[string]bool{}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(dir, header.Name)
		if err != nil {
			return err
		}
		if err := b.checkLinks(dir, target, header.Name, links); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := b.fs().MkdirAll(target, os.FileMode(header.Mode).Perm()|0700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := b.writeFile(target, os.FileMode(header.Mode).Perm(), tr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLinkname(dir, target, header); err != nil {
				return err
			}
			if err := b.symlink(header.Linkname, target); err != nil {
				return err
			}
			links[target] = true
		default:
			log.WithField("entry", header.Name).Debugf("Skipping tar entry of type %q", header.Typeflag)
			continue
		}
		b.verbose(header.Name)
	}
}

func (b Builtin) writeFile(target string, mode os.FileMode, r io.Reader) error {
	if err := b.fs().MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	out, err := b.fs().OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, r)
	cerr := out.Close()
	if err != nil {
		return err
	}
	return cerr
}

func (b Builtin) symlink(linkname, target string) error {
	linker, ok := b.fs().(afero.Linker)
	if !ok {
		log.WithField("link", target).Debug("Filesystem does not support symlinks, skipping")
		return nil
	}

	if err := b.fs().MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if err := b.fs().Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return linker.SymlinkIfPossible(linkname, target)
}

// checkLinks refuses entries placed below a symlink from the same archive.
// An entry replacing such a symlink removes the link first.
func (b Builtin) checkLinks(dir, target, name string, links map[string]bool) error {
	root := filepath.Clean(dir)
	for p := filepath.Dir(target); p != root && p != filepath.Dir(p); p = filepath.Dir(p) {
		if links[p] {
			return fmt.Errorf("archive entry %q is inside symlink %s", name, p)
		}
	}
	if links[target] {
		delete(links, target)
		if err := b.fs().Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// checkLinkname refuses symlinks pointing outside dir.
func checkLinkname(dir, target string, header *tar.Header) error {
	link := filepath.FromSlash(header.Linkname)
	if filepath.IsAbs(link) {
		return fmt.Errorf("archive entry %q links to absolute path %s", header.Name, header.Linkname)
	}
	if _, err := safeJoin(dir, filepath.Join(relTo(dir, filepath.Dir(target)), link)); err != nil {
		return fmt.Errorf("archive entry %q links outside %s", header.Name, dir)
	}
	return nil
}

func relTo(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return path
	}
	return rel
}

// safeJoin resolves an entry name under dir, refusing names that escape it.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes %s", name, dir)
	}
	return target, nil
}
