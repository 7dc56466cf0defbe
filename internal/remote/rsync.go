package remote

import (
	"context"
	"path"
	"path/filepath"

	"datasync/internal/runner"
)

// Rsync reaches the webserver through the ssh and rsync programs.
type Rsync struct {
	Runner runner.Runner
	// Host is anything ssh accepts as a destination, e.g. user@host.
	Host string
}

func (r Rsync) EnsureDir(ctx context.Context, dir string) error {
	return r.Runner.Run(ctx, MkdirCommand(r.Host, dir)).Err()
}

func (r Rsync) Send(ctx context.Context, local, remoteDir string, overwrite bool) error {
	return r.Runner.Run(ctx, SendCommand(r.Host, local, remoteDir, overwrite)).Err()
}

func (Rsync) Close() error {
	return nil
}

// MkdirCommand is the ssh invocation that creates dir on host.
func MkdirCommand(host, dir string) runner.Command {
	return runner.New("ssh", host, "mkdir -p", dir)
}

// SendCommand is the rsync invocation that copies local into remoteDir on
// host. Without overwrite, files already on the server are skipped.
func SendCommand(host, local, remoteDir string, overwrite bool) runner.Command {
	dest := host + ":" + path.Join(remoteDir, filepath.Base(local))
	args := []string{"-av", "--progress", local, dest}
	if !overwrite {
		args = append([]string{"--ignore-existing"}, args...)
	}
	return runner.New("rsync", args...)
}
