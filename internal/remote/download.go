package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"datasync/internal/dataset"
	"datasync/internal/runner"
)

// Wget downloads archives with the wget program.
type Wget struct {
	Runner  runner.Runner
	RootURL string
}

func (w Wget) Download(ctx context.Context, id dataset.ID, dest string) error {
	return w.Runner.Run(ctx, DownloadCommand(dataset.DownloadURL(w.RootURL, id), dest)).Err()
}

// DownloadCommand is the wget invocation that saves url to dest.
func DownloadCommand(url, dest string) runner.Command {
	return runner.New("wget", "--output-document="+dest, url)
}

// HTTP downloads archives in-process.
type HTTP struct {
	Client  *http.Client
	RootURL string
	Fs      afero.Fs
}

// NewHTTPClient returns an HTTP client that respects proxy environment
// variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
}

func (h HTTP) Download(ctx context.Context, id dataset.ID, dest string) error {
	url := dataset.DownloadURL(h.RootURL, id)
	log.Infof("Downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := h.Client
	if client == nil {
		client = NewHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("download %s: server returned status: %s", url, resp.Status)
	}

	return writeFile(h.Fs, dest, resp.Body)
}
