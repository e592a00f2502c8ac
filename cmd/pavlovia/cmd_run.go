package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/minnojs/pavlovia/pkg/config"
	"github.com/minnojs/pavlovia/pkg/file"
	"github.com/minnojs/pavlovia/pkg/lifecycle"
	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/transport"
)

type runOptions struct {
	resultsPath string
	configURL   string
	pageURL     string
	downloadDir string
	s3Bucket    string
	incomplete  bool
	strict      bool
}

func newRunCommand(envFiles *[]string) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session and submit a results file",
		Long: `Run one complete session: load the configuration, open a session, submit the
results file and close the session as completed.

With --incomplete the run is torn down instead, as if the participant left:
the results are sent without confirmation when the experiment keeps
incomplete results, and the session is closed as not completed.

Failures never abort the run. They are logged, and with --strict the command
exits with status 1 when any stage failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*envFiles)
			if err != nil {
				return err
			}
			opts.apply(cmd, settings)
			return runSession(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resultsPath, "results", "r", "", "Results file to submit, - for stdin (required)")
	cmd.Flags().StringVar(&opts.configURL, "config", "", "Configuration document URL")
	cmd.Flags().StringVar(&opts.pageURL, "page-url", "", "Experiment page URL; its __ parameters are forwarded")
	cmd.Flags().StringVar(&opts.downloadDir, "download-dir", "", "Directory offered results are written to")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Offer results through this S3 bucket instead of a directory")
	cmd.Flags().BoolVar(&opts.incomplete, "incomplete", false, "Tear the session down as not completed")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with status 1 when any stage failed")
	_ = cmd.MarkFlagRequired("results")

	return cmd
}

// apply lets explicitly set flags override settings.
func (o *runOptions) apply(cmd *cobra.Command, s *config.Settings) {
	if cmd.Flags().Changed("config") {
		s.ConfigURL = o.configURL
	}
	if cmd.Flags().Changed("page-url") {
		s.PageURL = o.pageURL
	}
	if cmd.Flags().Changed("download-dir") {
		s.DownloadDir = o.downloadDir
	}
	if cmd.Flags().Changed("s3-bucket") {
		s.S3.Bucket = o.s3Bucket
	}
}

func runSession(ctx context.Context, stdout, stderr io.Writer, s *config.Settings, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := readResults(opts.resultsPath)
	if err != nil {
		return err
	}

	log, err := newLogger(s, stderr)
	if err != nil {
		return err
	}

	httpClient := newHTTPClient()
	client := transport.NewClient(
		transport.WithHTTPClient(httpClient),
		transport.WithTimeout(s.RequestTimeout),
		transport.WithUserAgent(userAgent()),
		transport.WithOnSend(logSend(log)),
	)
	beacon := transport.NewBeacon(client,
		transport.WithBeaconTimeout(s.BeaconTimeout),
		transport.WithBeaconHook(logSend(log)),
	)

	storage, err := newStorage(ctx, s, httpClient)
	if err != nil {
		return err
	}

	o := lifecycle.New(client,
		lifecycle.WithBeacon(beacon),
		lifecycle.WithDownloader(file.NewDownloader(storage, file.WithDownloaderLogger(log))),
		lifecycle.WithPageURL(s.PageURL),
		lifecycle.WithLogger(log),
	)

	o.Init(ctx, s.ConfigURL)
	if opts.incomplete {
		o.Unload(ctx, payload)
	} else {
		o.Finish(ctx, payload)
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.BeaconTimeout)
	defer cancel()
	if err := beacon.Flush(flushCtx); err != nil {
		log.WarnContext(ctx, "pending beacon sends abandoned", logger.Error(err))
	}

	runErr := o.Err()
	fmt.Fprintf(stdout, "run: %s\n", o.RunID())
	fmt.Fprintf(stdout, "session: %s\n", o.SessionState())
	if runErr != nil {
		fmt.Fprintf(stdout, "errors: %v\n", runErr)
		if opts.strict {
			return &DegradedError{Err: runErr}
		}
	}
	return nil
}

func readResults(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading results from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	return data, nil
}

// newHTTPClient builds the connection pool shared by the session requests and
// the S3 sink.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newStorage(ctx context.Context, s *config.Settings, httpClient *http.Client) (file.Storage, error) {
	if s.S3.Enabled() {
		storage, err := file.NewS3Storage(ctx, file.S3Config{
			Bucket:         s.S3.Bucket,
			Region:         s.S3.Region,
			AccessKeyID:    s.S3.AccessKeyID,
			SecretKey:      s.S3.SecretKey,
			Endpoint:       s.S3.Endpoint,
			BaseURL:        s.S3.BaseURL,
			Prefix:         s.S3.Prefix,
			ForcePathStyle: s.S3.ForcePathStyle,
		},
			file.WithHTTPClient(httpClient),
			file.WithS3UploadTimeout(s.RequestTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("configuring S3 downloads: %w", err)
		}
		return storage, nil
	}

	storage, err := file.NewLocalStorage(s.DownloadDir, s.DownloadBaseURL)
	if err != nil {
		return nil, fmt.Errorf("configuring download directory: %w", err)
	}
	return storage, nil
}

func logSend(log *slog.Logger) transport.SendHook {
	return func(r transport.SendResult) {
		level := slog.LevelDebug
		if !r.Success {
			level = slog.LevelWarn
		}
		log.Log(context.Background(), level, "request sent",
			logger.HTTP(r.Method, r.URL, r.StatusCode, r.Duration),
			logger.Error(r.Error),
		)
	}
}
