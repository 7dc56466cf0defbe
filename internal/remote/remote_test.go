package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"datasync/internal/dataset"
	"datasync/internal/runner"
	"datasync/pkg/object/objecttest"
)

const staged = "data/webserver-files/300w/300w.tar.gz"

func TestRsync(t *testing.T) {
	ctx := context.Background()
	rec := &runner.Recorder{}
	r := Rsync{Runner: rec, Host: "login.example.org"}

	require.NoError(t, r.EnsureDir(ctx, "/srv/www/data/datasets"))
	require.NoError(t, r.Send(ctx, staged, "/srv/www/data/datasets", false))
	require.NoError(t, r.Send(ctx, staged, "/srv/www/data/datasets", true))

	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, []string{"login.example.org", "mkdir -p", "/srv/www/data/datasets"}, cmds[0].Args)
	assert.Equal(t, "rsync --ignore-existing -av --progress "+staged+
		" login.example.org:/srv/www/data/datasets/300w.tar.gz", cmds[1].String())
	assert.Equal(t, "rsync -av --progress "+staged+
		" login.example.org:/srv/www/data/datasets/300w.tar.gz", cmds[2].String())
	assert.NotContains(t, cmds[2].Args, "--ignore-existing")

	rec.Handler = func(runner.Command) runner.Result { return runner.Result{ExitCode: 255} }
	assert.Error(t, r.EnsureDir(ctx, "/srv/www/data/datasets"))
}

func TestBucketSend(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, staged, []byte("v1"), 0644))

	store := &objecttest.Memory{}
	b := Bucket{Store: store, Fs: fs, WebRoot: "/srv/www"}
	require.NoError(t, b.EnsureDir(ctx, "/srv/www/data/datasets"))

	require.NoError(t, b.Send(ctx, staged, "/srv/www/data/datasets", false))
	got, ok := store.Bytes("data/datasets/300w.tar.gz")
	require.True(t, ok)
	assert.Equal(t, "v1", string(got))

	// Without overwrite the existing object is kept.
	require.NoError(t, afero.WriteFile(fs, staged, []byte("v2"), 0644))
	require.NoError(t, b.Send(ctx, staged, "/srv/www/data/datasets", false))
	got, _ = store.Bytes("data/datasets/300w.tar.gz")
	assert.Equal(t, "v1", string(got))
	assert.Equal(t, 1, store.Puts)

	require.NoError(t, b.Send(ctx, staged, "/srv/www/data/datasets", true))
	got, _ = store.Bytes("data/datasets/300w.tar.gz")
	assert.Equal(t, "v2", string(got))

	assert.Equal(t, "data/datasets/x.tar.gz", Bucket{}.key("/data/datasets/x.tar.gz"))
	assert.Equal(t, "other/data/datasets/x.tar.gz", Bucket{WebRoot: "/srv/www"}.key("/other/data/datasets/x.tar.gz"))
}

func TestBucketDownloader(t *testing.T) {
	ctx := context.Background()
	store := &objecttest.Memory{}
	_, err := store.Put(ctx, dataset.ObjectKey(dataset.W300), strings.NewReader("archive"), "", nil)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("data/300w", 0755))
	d := BucketDownloader{Store: store, Fs: fs}
	require.NoError(t, d.Download(ctx, dataset.W300, "data/300w/300w.tar.gz"))

	got, err := afero.ReadFile(fs, "data/300w/300w.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "archive", string(got))

	assert.Error(t, d.Download(ctx, dataset.CelebA, "data/celeba/celeba.tar.gz"))
}

func TestWget(t *testing.T) {
	rec := &runner.Recorder{}
	w := Wget{Runner: rec, RootURL: "http://example.org/data"}
	require.NoError(t, w.Download(context.Background(), dataset.W300, "data/300w/300w.tar.gz"))

	cmds := rec.Named("wget")
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"--output-document=data/300w/300w.tar.gz", "http://example.org/data/datasets/300w.tar.gz"},
		cmds[0].Args)
}

func TestHTTPDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/datasets/300w.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.Write([]byte("gzip bytes"))
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	h := HTTP{Client: ts.Client(), RootURL: ts.URL + "/data", Fs: fs}
	require.NoError(t, h.Download(context.Background(), dataset.W300, "300w.tar.gz"))
	got, err := afero.ReadFile(fs, "300w.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "gzip bytes", string(got))

	err = h.Download(context.Background(), dataset.CelebA, "celeba.tar.gz")
	assert.ErrorContains(t, err, "404")
	exists, _ := afero.Exists(fs, "celeba.tar.gz")
	assert.False(t, exists)
}

func newTestSFTP(t *testing.T, fs afero.Fs) *SFTP {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)

	s := NewSFTP(fs, client, "test-host")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSFTP(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, staged, []byte("first"), 0644))

	s := newTestSFTP(t, fs)
	require.NoError(t, s.EnsureDir(ctx, "/srv/www/data/datasets"))
	require.NoError(t, s.EnsureDir(ctx, "/srv/www/data/datasets"))
	require.NoError(t, s.Send(ctx, staged, "/srv/www/data/datasets", false))

	read := func() string {
		f, err := s.client.Open("/srv/www/data/datasets/300w.tar.gz")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "first", read())

	require.NoError(t, afero.WriteFile(fs, staged, []byte("second"), 0644))
	require.NoError(t, s.Send(ctx, staged, "/srv/www/data/datasets", false))
	assert.Equal(t, "first", read())

	require.NoError(t, s.Send(ctx, staged, "/srv/www/data/datasets", true))
	assert.Equal(t, "second", read())
}

func TestSplitHost(t *testing.T) {
	t.Setenv("USER", "researcher")

	tests := []struct {
		in, user, addr string
	}{
		{"login.robots.ox.ac.uk", "researcher", "login.robots.ox.ac.uk:22"},
		{"alice@login.robots.ox.ac.uk", "alice", "login.robots.ox.ac.uk:22"},
		{"bob@10.0.0.1:2222", "bob", "10.0.0.1:2222"},
		{"::1", "researcher", "[::1]:22"},
	}
	for _, test := range tests {
		user, addr := splitHost(test.in)
		assert.Equal(t, test.user, user, test.in)
		assert.Equal(t, test.addr, addr, test.in)
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()

	signer, err := loadKey(SSHOptions{KeyFile: filepath.Join(dir, "missing")})
	require.NoError(t, err)
	assert.Nil(t, signer)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "test key", []byte("hunter2"))
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(block), 0600))

	var asked string
	signer, err = loadKey(SSHOptions{KeyFile: keyFile, Passphrase: func(file string) ([]byte, error) {
		asked = file
		return []byte("hunter2"), nil
	}})
	require.NoError(t, err)
	require.NotNil(t, signer)
	assert.Equal(t, keyFile, asked)

	_, err = loadKey(SSHOptions{KeyFile: keyFile, Passphrase: func(string) ([]byte, error) {
		return []byte("wrong"), nil
	}})
	assert.Error(t, err)
}

func TestHostKeyCallback(t *testing.T) {
	cb, err := hostKeyCallback(SSHOptions{Insecure: true})
	require.NoError(t, err)
	assert.NotNil(t, cb)

	_, err = hostKeyCallback(SSHOptions{KnownHosts: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
