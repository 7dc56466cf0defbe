package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

const dialTimeout = 30 * time.Second

// SSHOptions configures how the sftp transport authenticates.
type SSHOptions struct {
	// KeyFile is a private key tried after the ssh agent. "~" is expanded.
	KeyFile string
	// KnownHosts is the known_hosts file host keys are checked against.
	KnownHosts string
	// Insecure skips host key verification.
	Insecure bool
	// Passphrase is asked for the passphrase of an encrypted KeyFile. It
	// defaults to prompting on the terminal.
	Passphrase func(keyFile string) ([]byte, error)
}

// SFTP copies archives over an in-process ssh connection.
type SFTP struct {
	Fs     afero.Fs
	client *sftp.Client
	conn   *ssh.Client
	host   string
}

// DialSFTP connects to host, given as [user@]host[:port].
func DialSFTP(ctx context.Context, host string, opts SSHOptions) (*SFTP, error) {
	user, addr := splitHost(host)

	auth, err := authMethods(opts)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	tcp, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(tcp, addr, config)
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	conn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	log.WithField("host", addr).WithField("user", user).Debug("Connected over sftp")
	return &SFTP{Fs: afero.NewOsFs(), client: client, conn: conn, host: host}, nil
}

// NewSFTP wraps an existing sftp client.
func NewSFTP(fs afero.Fs, client *sftp.Client, host string) *SFTP {
	return &SFTP{Fs: fs, client: client, host: host}
}

func (s *SFTP) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.MkdirAll(dir); err != nil {
		return fmt.Errorf("mkdir -p %s on %s: %w", dir, s.host, err)
	}
	return nil
}

func (s *SFTP) Send(ctx context.Context, local, remoteDir string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := path.Join(remoteDir, filepath.Base(local))
	if !overwrite {
		_, err := s.client.Stat(dest)
		if err == nil {
			log.WithField("path", dest).Infof("Already present on %s, skipping", s.host)
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s on %s: %w", dest, s.host, err)
		}
	}

	src, err := s.Fs.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := s.client.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open %s on %s: %w", dest, s.host, err)
	}

	n, err := dst.ReadFrom(src)
	cerr := dst.Close()
	if err != nil {
		return fmt.Errorf("copy to %s on %s: %w", dest, s.host, err)
	}
	if cerr != nil {
		return cerr
	}

	log.WithField("path", dest).WithField("bytes", n).Infof("Sent %s", filepath.Base(local))
	return nil
}

func (s *SFTP) Close() error {
	err := s.client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// splitHost turns [user@]host[:port] into a user and a dialable address.
func splitHost(host string) (string, string) {
	user := os.Getenv("USER")
	if i := strings.LastIndex(host, "@"); i >= 0 {
		user, host = host[:i], host[i+1:]
	}

	if _, port, err := net.SplitHostPort(host); err == nil {
		if _, err := strconv.Atoi(port); err == nil {
			return user, host
		}
	}
	return user, net.JoinHostPort(host, "22")
}

func authMethods(opts SSHOptions) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			log.WithError(err).Debug("Failed to reach ssh agent")
		}
	}

	if opts.KeyFile != "" {
		signer, err := loadKey(opts)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(methods) == 0 {
		return nil, errors.New("no ssh credentials: start an ssh agent or set DATASYNC_SSH_KEY")
	}
	return methods, nil
}

// loadKey parses opts.KeyFile, asking for a passphrase if it is encrypted.
// A missing key file is not an error.
func loadKey(opts SSHOptions) (ssh.Signer, error) {
	keyFile, err := homedir.Expand(opts.KeyFile)
	if err != nil {
		return nil, err
	}

	pem, err := os.ReadFile(keyFile)
	if os.IsNotExist(err) {
		log.WithField("key", keyFile).Debug("Private key not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keyFile, err)
		}
		return signer, nil
	}

	prompt := opts.Passphrase
	if prompt == nil {
		prompt = promptPassphrase
	}
	passphrase, err := prompt(keyFile)
	if err != nil {
		return nil, err
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyFile, err)
	}
	return signer, nil
}

func promptPassphrase(keyFile string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is encrypted and stdin is not a terminal", keyFile)
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", keyFile)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return passphrase, err
}

func hostKeyCallback(opts SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.Insecure {
		log.Warn("Host key verification is disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file, err := homedir.Expand(opts.KnownHosts)
	if err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return callback, nil
}
