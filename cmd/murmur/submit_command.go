package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"murmur/internal/api"
	"murmur/internal/media"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		title         string
		language      string
		translateTo   string
		formats       []string
		diarize       bool
		minSpeakers   int
		maxSpeakers   int
		refine        bool
		semanticSeg   bool
		errorCorrect  bool
		exprOptimize  bool
		speakerPrefix bool
		includeWords  bool
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:   "submit <path>...",
		Short: "Queue media files for transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if title != "" && len(args) > 1 {
				return errors.New("--title applies to a single file")
			}

			paths := make([]string, 0, len(args))
			for _, arg := range args {
				absPath, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				info, err := os.Stat(absPath)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("file does not exist: %s", absPath)
					}
					return fmt.Errorf("inspect file: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", absPath)
				}
				if !media.SupportedExtension(absPath) {
					return fmt.Errorf("unsupported media extension %q", filepath.Ext(absPath))
				}
				paths = append(paths, absPath)
			}

			flags := cmd.Flags()
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				out := cmd.OutOrStdout()
				for _, path := range paths {
					req := api.SubmitRequest{Path: path, Title: title}
					if lang := strings.TrimSpace(language); lang != "" {
						req.LanguageHint = &lang
					}
					if target := strings.TrimSpace(translateTo); target != "" {
						req.TranslateTo = &target
					}
					if len(formats) > 0 {
						req.Formats = formats
					}
					if flags.Changed("diarize") {
						req.Diarize = &diarize
					}
					if flags.Changed("min-speakers") {
						req.MinSpeakers = &minSpeakers
					}
					if flags.Changed("max-speakers") {
						req.MaxSpeakers = &maxSpeakers
					}
					if flags.Changed("refine") {
						req.Refine = &refine
					}
					if flags.Changed("semantic-segmentation") {
						req.SemanticSegmentation = &semanticSeg
					}
					if flags.Changed("error-correction") {
						req.ErrorCorrection = &errorCorrect
					}
					if flags.Changed("expression-optimization") {
						req.ExpressionOptimization = &exprOptimize
					}
					if flags.Changed("speaker-prefix") {
						req.SpeakerPrefix = &speakerPrefix
					}
					if flags.Changed("include-words") {
						req.IncludeWords = &includeWords
					}

					view, err := tasks.Submit(runCtx, req)
					if err != nil {
						return err
					}
					if view == nil {
						return errors.New("empty response from daemon")
					}
					if jsonOut {
						if err := writeJSON(cmd, view); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(out, "Queued %s as task #%d\n", filepath.Base(path), view.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Display title for the task")
	cmd.Flags().StringVar(&language, "language", "", "Language hint for transcription (ISO 639-1)")
	cmd.Flags().StringVar(&translateTo, "translate-to", "", "Translate the transcript to this language")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "Output formats (json, srt, vtt)")
	cmd.Flags().BoolVar(&diarize, "diarize", true, "Run speaker diarization")
	cmd.Flags().IntVar(&minSpeakers, "min-speakers", 0, "Minimum speaker count for diarization")
	cmd.Flags().IntVar(&maxSpeakers, "max-speakers", 0, "Maximum speaker count for diarization")
	cmd.Flags().BoolVar(&refine, "refine", true, "Run LLM refinement")
	cmd.Flags().BoolVar(&semanticSeg, "semantic-segmentation", true, "Re-segment the transcript along sentence boundaries")
	cmd.Flags().BoolVar(&errorCorrect, "error-correction", true, "Correct recognition errors during refinement")
	cmd.Flags().BoolVar(&exprOptimize, "expression-optimization", false, "Smooth filler words and rough phrasing")
	cmd.Flags().BoolVar(&speakerPrefix, "speaker-prefix", true, "Prefix subtitle lines with speaker labels")
	cmd.Flags().BoolVar(&includeWords, "include-words", false, "Include word-level timings in JSON output")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created task as JSON")
	return cmd
}
