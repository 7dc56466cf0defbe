// Package archive builds and unpacks the gzip-compressed tarballs datasets are
// published as.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"datasync/internal/runner"
)

// Archiver creates an archive from an inclusion list and extracts archives.
type Archiver interface {
	// Create writes a tar.gz at dest holding every path named in includeList,
	// following symlinks.
	Create(ctx context.Context, includeList, dest string) error
	// Extract unpacks archive into the working directory.
	Extract(ctx context.Context, archive string) error
}

// SystemTar shells out to GNU tar.
type SystemTar struct {
	Runner runner.Runner
}

func (s SystemTar) Create(ctx context.Context, includeList, dest string) error {
	return s.Runner.Run(ctx, CreateCommand(includeList, dest)).Err()
}

func (s SystemTar) Extract(ctx context.Context, archive string) error {
	return s.Runner.Run(ctx, ExtractCommand(archive)).Err()
}

// CreateCommand is the tar invocation that builds dest from includeList.
func CreateCommand(includeList, dest string) runner.Command {
	return runner.New("tar",
		"--dereference",
		"--create",
		"--verbose",
		"--file="+dest,
		"--gzip",
		"--files-from="+includeList,
	)
}

// ExtractCommand is the tar invocation that unpacks archive verbosely.
func ExtractCommand(archive string) runner.Command {
	return runner.New("tar", "-xvf", archive)
}

// ReadIncludeList returns the paths listed in an inclusion list, one per
// line. Surrounding whitespace and blank lines are ignored.
func ReadIncludeList(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read inclusion list: %w", err)
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read inclusion list: %w", err)
	}
	return paths, nil
}
