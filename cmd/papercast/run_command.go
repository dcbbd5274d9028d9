package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"papercast/internal/daemon"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Create a podcast in-process without a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateGeneration(); err != nil {
				return err
			}
			path := strings.TrimSpace(args[0])
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			logger := logging.NewConsole(cfg.Logging.Level)
			p, err := daemon.BuildPipeline(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer p.Close()

			id, runErr := p.Service.Submit(cmd.Context(), pipeline.Submission{
				Filename: filepath.Base(path),
				Data:     data,
				Model:    model,
				Sync:     true,
			})
			if id == "" {
				return runErr
			}
			job, err := p.Service.Status(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Job", statusInfo, id, colorize))
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job), job.Message, colorize))

			var fatal *pipeline.FatalError
			if errors.As(runErr, &fatal) {
				return fmt.Errorf("fallback audio could not be written: %w", fatal.Err)
			}
			if runErr != nil {
				return runErr
			}
			if job.Status != jobs.StatusCompleted {
				return fmt.Errorf("podcast %s failed", id)
			}
			if job.Fallback {
				fmt.Fprintln(out, renderStatusLine("Audio", statusWarn, "silent placeholder", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Output", statusOK, job.AudioPath, colorize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "LLM model override for this document")
	return cmd
}
