package main

import (
	"github.com/spf13/cobra"

	"datasync/internal/cli"
	"datasync/internal/config"
	"datasync/internal/dataset"
)

// newRootCmd binds the flags to cfg, whose current values are the defaults.
func newRootCmd(cfg *config.Config, env cli.Env) *cobra.Command {
	var (
		refreshCompression bool
		refreshServer      bool
		refreshData        bool
		refreshTargets     []string
	)

	cmd := &cobra.Command{
		Use:   "datasync",
		Short: "Datasync uploads and fetches dataset archives.",
		Long: `Datasync uploads and fetches dataset archives. Upload compresses a dataset
from its tar_include.txt and copies it to the webserver; fetch downloads a
published archive and unpacks it under data/.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, err := config.ParseRefresh(refreshTargets)
			if err != nil {
				return err
			}
			cfg.Refresh = refresh.Merge(config.Refresh{
				Server:      refreshServer,
				Compression: refreshCompression,
				Data:        refreshData,
			})
			return cli.Run(cmd.Context(), env, *cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Dataset, "dataset", "", "Dataset to sync: "+dataset.Names())
	flags.StringVar(&cfg.Action, "action", cfg.Action, "upload or fetch")
	flags.StringVar(&cfg.Webserver, "webserver", cfg.Webserver, "Host the archives are uploaded to")
	flags.BoolVar(&refreshCompression, "refresh_compression", false, "Rebuild the archive even if one is staged")
	flags.BoolVar(&refreshServer, "refresh_server", false, "Overwrite the archive on the webserver")
	flags.BoolVar(&refreshData, "refresh_data", false, "Fetch even if the dataset directory exists")
	flags.BoolVar(&cfg.Purge, "purge_tar_file", false, "Delete the downloaded archive after extraction")
	flags.StringVar(&cfg.WebDir, "web_dir", cfg.WebDir, "Web root on the webserver")
	flags.StringVar(&cfg.RootURL, "root_url", cfg.RootURL, "Public URL of the web root's data directory")

	flags.StringSliceVar(&refreshTargets, "refresh", nil, "Refresh targets: server, compression, data or all")
	flags.StringVar(&cfg.Transport, "transport", cfg.Transport, "Upload transport: rsync, sftp or bucket")
	flags.StringVar(&cfg.Downloader, "downloader", cfg.Downloader, "Fetch downloader: wget, http or bucket")
	flags.StringVar(&cfg.Tar, "tar", cfg.Tar, "Archive implementation: system or builtin")
	flags.BoolVar(&cfg.Strict, "strict", false, "Stop at the first failed step")
	cmd.MarkFlagRequired("dataset")

	return cmd
}
