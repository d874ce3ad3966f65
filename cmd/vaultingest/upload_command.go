package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"vaultingest/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var tierFlag string
	var skipStorage bool
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files and run them through extraction and embedding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				absPath, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				paths = append(paths, absPath)
			}

			return ctx.withEngine(func(eng *engine) error {
				out := cmd.OutOrStdout()
				renderer := newProgressRenderer(out)

				opts := upload.Options{
					Tier:        tierFlag,
					SkipStorage: skipStorage,
					ContentType: contentType,
					Observer:    renderer.observe,
					OnTransfer:  renderer.onTransfer,
				}

				failures := 0
				for _, path := range paths {
					renderer.begin(filepath.Base(path))
					result, err := eng.ctrl.Submit(cmd.Context(), path, opts)
					if err != nil {
						failures++
						fmt.Fprintf(out, "%s: failed: %v\n", filepath.Base(path), err)
						continue
					}
					printSubmitResult(out, filepath.Base(path), result)
				}

				if failures > 0 {
					return fmt.Errorf("%d of %d files failed", failures, len(paths))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tierFlag, "tier", "t", "free", "Account tier whose size ceiling applies (free, pro, enterprise)")
	cmd.Flags().BoolVar(&skipStorage, "skip-storage", false, "Process the file locally without storing it remotely")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type reported to the storage endpoint")
	return cmd
}

func printSubmitResult(out io.Writer, name string, result *upload.Result) {
	switch {
	case result.FileID != "" && result.Resumed:
		fmt.Fprintf(out, "%s: complete (resumed, file %s)\n", name, result.FileID)
	case result.FileID != "":
		fmt.Fprintf(out, "%s: complete (file %s)\n", name, result.FileID)
	default:
		fmt.Fprintf(out, "%s: complete\n", name)
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var tierFlag string

	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume an incomplete upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}

			return ctx.withEngine(func(eng *engine) error {
				record, err := eng.store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("no incomplete session with id %d", id)
				}

				out := cmd.OutOrStdout()
				renderer := newProgressRenderer(out)
				renderer.begin(record.Filename)

				result, err := eng.ctrl.Submit(cmd.Context(), record.SourcePath, upload.Options{
					Tier:        tierFlag,
					ContentType: record.ContentType,
					Observer:    renderer.observe,
					OnTransfer:  renderer.onTransfer,
				})
				if err != nil {
					return err
				}
				printSubmitResult(out, record.Filename, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tierFlag, "tier", "t", "free", "Account tier whose size ceiling applies (free, pro, enterprise)")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an incomplete upload session and discard its bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}

			return ctx.withEngine(func(eng *engine) error {
				record, err := eng.store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("no incomplete session with id %d", id)
				}
				if err := eng.ctrl.Cancel(cmd.Context(), record.Fingerprint); err != nil {
					if errors.Is(err, upload.ErrCanceled) {
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled session %d (%s)\n", id, record.Filename)
				return nil
			})
		},
	}
}
