package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"papercast/internal/audio"
	"papercast/internal/fileutil"
	"papercast/internal/jobs"
	"papercast/internal/publish"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var model string
	var wait bool
	var syncMode bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a document to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer file.Close()

			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			id, err := client.Submit(cmd.Context(), filepath.Base(path), file, model, syncMode)
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			fmt.Fprintf(out, "Task %s submitted\n", id)
			if !wait && !syncMode {
				return nil
			}

			colorize := shouldColorize(out)
			lastMessage := ""
			job, err := client.WaitForTerminal(cmd.Context(), id, interval, func(job jobs.Job) {
				if job.Message == lastMessage {
					return
				}
				lastMessage = job.Message
				fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("%3.0f%%", job.Progress*100), jobStatusKind(job), job.Message, colorize))
			})
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			if job.Status == jobs.StatusFailed {
				return fmt.Errorf("podcast %s failed: %s", id, job.Message)
			}
			if job.Fallback {
				fmt.Fprintln(out, "Speech synthesis failed; a silent placeholder was written")
			}
			fmt.Fprintf(out, "Fetch with: papercast fetch %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "LLM model override for this document")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the podcast is finished")
	cmd.Flags().BoolVar(&syncMode, "sync", false, "Ask the server to finish the podcast before responding")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval for --wait")
	return cmd
}

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "note <note-id>",
		Short: "Build and publish a podcast from a stored note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.SubmitNote(cmd.Context(), publish.NoteRequest{
				NoteID: strings.TrimSpace(args[0]),
				UserID: strings.TrimSpace(userID),
				Title:  strings.TrimSpace(title),
			})
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Podcast %q published as task %s\n", result.Podcast.Title, result.JobID)
			if result.Podcast.Fallback {
				fmt.Fprintln(out, "Speech synthesis failed; a silent placeholder was published")
			}
			fmt.Fprintln(out, result.AudioURL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the note")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Episode title (defaults to the note title)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the published podcast as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of a podcast job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Status(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			if asJSON {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job), string(job.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.0f%%", job.Progress*100), colorize))
			fmt.Fprintln(out, renderStatusLine("Message", statusInfo, job.Message, colorize))
			if job.OriginalFilename != "" {
				fmt.Fprintln(out, renderStatusLine("Document", statusInfo, job.OriginalFilename, colorize))
			}
			if job.Model != "" {
				fmt.Fprintln(out, renderStatusLine("Model", statusInfo, job.Model, colorize))
			}
			if job.Status == jobs.StatusCompleted {
				fmt.Fprintln(out, renderStatusLine("Placeholder audio", statusInfo, yesNo(job.Fallback), colorize))
			}
			if job.AudioURL != "" {
				fmt.Fprintln(out, renderStatusLine("Audio URL", statusInfo, job.AudioURL, colorize))
			}
			if job.PublicURL != "" {
				fmt.Fprintln(out, renderStatusLine("Public URL", statusInfo, job.PublicURL, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job snapshot as JSON")
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Download a finished podcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			target := strings.TrimSpace(output)
			if target == "" {
				target = audio.PodcastFileName(id)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			if target == "-" {
				_, err := client.Download(cmd.Context(), id, cmd.OutOrStdout())
				return wrapAPIError(err, ctx.apiURL())
			}

			var written int64
			err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
				n, err := client.Download(cmd.Context(), id, w)
				written = n
				return err
			})
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (\"-\" for stdout)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently completed podcasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("limit must not be negative")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			records, err := client.List(cmd.Context(), limit)
			if err != nil {
				return wrapAPIError(err, ctx.apiURL())
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No podcasts yet")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.JobID,
					rec.Title,
					rec.OriginalFilename,
					yesNo(rec.Fallback),
					rec.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Document", "Placeholder", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d podcast(s)\n", len(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of podcasts to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func jobStatusKind(job jobs.Job) statusKind {
	switch job.Status {
	case jobs.StatusCompleted:
		if job.Fallback {
			return statusWarn
		}
		return statusOK
	case jobs.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
