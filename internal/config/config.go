// Package config holds the settings of a single datasync invocation.
//
// Flag defaults can be overridden through DATASYNC_* environment variables,
// which may also be placed in a .env file in the working directory.
package config

import (
	"fmt"
	"net/url"

	"github.com/gnitoahc/go-dotenv"
)

const (
	DefaultWebserver = "login.robots.ox.ac.uk"
	DefaultWebDir    = "/projects/vgg/vgg/WWW/research/DVE"
	DefaultRootURL   = "http://www.robots.ox.ac.uk/~vgg/research/DVE/data"
)

// Action selects the operation to run.
type Action string

const (
	ActionFetch  Action = "fetch"
	ActionUpload Action = "upload"
)

// ParseAction rejects anything other than fetch or upload.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionFetch, ActionUpload:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action: %s", s)
}

// Transport selects how archives reach the webserver.
type Transport string

const (
	TransportRsync  Transport = "rsync"
	TransportSFTP   Transport = "sftp"
	TransportBucket Transport = "bucket"
)

func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportRsync, TransportSFTP, TransportBucket:
		return Transport(s), nil
	}
	return "", fmt.Errorf("unknown transport: %s", s)
}

// Downloader selects how archives are fetched.
type Downloader string

const (
	DownloaderWget   Downloader = "wget"
	DownloaderHTTP   Downloader = "http"
	DownloaderBucket Downloader = "bucket"
)

func ParseDownloader(s string) (Downloader, error) {
	switch Downloader(s) {
	case DownloaderWget, DownloaderHTTP, DownloaderBucket:
		return Downloader(s), nil
	}
	return "", fmt.Errorf("unknown downloader: %s", s)
}

// Tar selects the archive implementation.
type Tar string

const (
	TarSystem  Tar = "system"
	TarBuiltin Tar = "builtin"
)

func ParseTar(s string) (Tar, error) {
	switch Tar(s) {
	case TarSystem, TarBuiltin:
		return Tar(s), nil
	}
	return "", fmt.Errorf("unknown tar implementation: %s", s)
}

// SSH configures the sftp transport.
type SSH struct {
	KeyFile    string
	KnownHosts string
	Insecure   bool
}

// Bucket configures S3-compatible storage.
type Bucket struct {
	Name            string
	AccountID       string
	Endpoint        string
	Region          string
	AccessKey       string
	SecretAccessKey string
}

// Config is the fully resolved set of options for one run.
type Config struct {
	Dataset    string
	Action     string
	Webserver  string
	WebDir     string
	RootURL    string
	Purge      bool
	Strict     bool
	Transport  string
	Downloader string
	Tar        string
	Refresh    Refresh

	SSH    SSH
	Bucket Bucket
}

// Load reads the .env file, if any, and returns a Config whose fields hold
// the defaults the command line starts from.
func Load() Config {
	dotenv.Load(".env")

	return Config{
		Action:     string(ActionFetch),
		Webserver:  dotenv.Get("DATASYNC_WEBSERVER", DefaultWebserver),
		WebDir:     dotenv.Get("DATASYNC_WEB_DIR", DefaultWebDir),
		RootURL:    dotenv.Get("DATASYNC_ROOT_URL", DefaultRootURL),
		Transport:  dotenv.Get("DATASYNC_TRANSPORT", string(TransportRsync)),
		Downloader: dotenv.Get("DATASYNC_DOWNLOADER", string(DownloaderWget)),
		Tar:        dotenv.Get("DATASYNC_TAR", string(TarSystem)),
		SSH: SSH{
			KeyFile:    dotenv.Get("DATASYNC_SSH_KEY", "~/.ssh/id_rsa"),
			KnownHosts: dotenv.Get("DATASYNC_SSH_KNOWN_HOSTS", "~/.ssh/known_hosts"),
			Insecure:   dotenv.Get("DATASYNC_SSH_INSECURE", "false") == "true",
		},
		Bucket: Bucket{
			Name:            dotenv.Get("DATASYNC_BUCKET", ""),
			AccountID:       dotenv.Get("DATASYNC_BUCKET_ACCOUNT_ID", ""),
			Endpoint:        dotenv.Get("DATASYNC_BUCKET_ENDPOINT", ""),
			Region:          dotenv.Get("DATASYNC_BUCKET_REGION", "auto"),
			AccessKey:       dotenv.Get("DATASYNC_BUCKET_ACCESS_KEY", ""),
			SecretAccessKey: dotenv.Get("DATASYNC_BUCKET_SECRET_ACCESS_KEY", ""),
		},
	}
}

// Validate checks the selectors and the root URL.
func (c Config) Validate() error {
	if _, err := ParseAction(c.Action); err != nil {
		return err
	}
	if _, err := ParseTransport(c.Transport); err != nil {
		return err
	}
	if _, err := ParseDownloader(c.Downloader); err != nil {
		return err
	}
	if _, err := ParseTar(c.Tar); err != nil {
		return err
	}
	if _, err := url.ParseRequestURI(c.RootURL); err != nil {
		return fmt.Errorf("invalid root url %q: %w", c.RootURL, err)
	}
	if c.usesBucket() && c.Bucket.Name == "" {
		return fmt.Errorf("bucket %s requires DATASYNC_BUCKET", c.bucketUse())
	}
	return nil
}

func (c Config) usesBucket() bool {
	switch Action(c.Action) {
	case ActionUpload:
		return Transport(c.Transport) == TransportBucket
	case ActionFetch:
		return Downloader(c.Downloader) == DownloaderBucket
	}
	return false
}

func (c Config) bucketUse() string {
	if Action(c.Action) == ActionUpload {
		return "transport"
	}
	return "downloader"
}
