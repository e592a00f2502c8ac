package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/minnojs/pavlovia/pkg/config"
	"github.com/minnojs/pavlovia/pkg/logger"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:   "pavlovia",
		Short: "Record experiment results against pavlovia.org",
		Long: `pavlovia drives one recording session against pavlovia.org: it fetches the
experiment configuration, opens a session, uploads a results file and closes
the session. Pilot runs and experiments that are not running get their results
stored locally or in S3 instead.

Settings are read from PAVLOVIA_* environment variables and .env files; flags
override them.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load settings from these .env files")

	cmd.AddCommand(newRunCommand(&envFiles))
	cmd.AddCommand(newParamsCommand())

	return cmd
}

func userAgent() string {
	return "pavlovia/" + version
}

func execute() error {
	return newRootCommand().Execute()
}

func loadSettings(envFiles []string) (*config.Settings, error) {
	var opts []config.Option
	if len(envFiles) > 0 {
		opts = append(opts, config.WithEnvFiles(envFiles...))
	}
	return config.Load(opts...)
}

func newLogger(s *config.Settings, out io.Writer) (*slog.Logger, error) {
	opts := []logger.Option{
		logger.WithEnvironment(s.Env, "pavlovia"),
		logger.WithOutput(out),
		logger.WithLevelName(s.LogLevel),
		logger.WithAttr(slog.String("version", version)),
	}
	switch f := logger.Format(s.LogFormat); f {
	case "":
	case logger.FormatJSON, logger.FormatText:
		opts = append(opts, logger.WithFormat(f))
	default:
		return nil, fmt.Errorf("invalid log format %q", s.LogFormat)
	}
	return logger.New(opts...), nil
}
