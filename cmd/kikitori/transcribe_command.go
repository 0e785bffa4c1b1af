package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kikitori/audio"
	"kikitori/internal/export"
	"kikitori/internal/service"
	"kikitori/models"
	"kikitori/session"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		tierFlag      string
		languageFlag  string
		formatFlag    string
		outputFlag    string
		noEnhanceFlag bool
		noTimestamps  bool
		saveAudioFlag string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a wav or mp3 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, sessions, err := ctx.ensureService()
			if err != nil {
				return err
			}
			defer ctx.close()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			tier := cfg.DefaultTier()
			if tierFlag != "" {
				tier, err = models.ParseTier(tierFlag)
				if err != nil {
					return err
				}
			}

			language := languageFlag
			if language == "" {
				language = cfg.Transcribe.Language
			}

			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio file: %w", err)
			}

			modelMgr, err := ctx.ensureModelManager()
			if err != nil {
				return err
			}
			if err := modelMgr.EnsureTier(cmd.Context(), tier); err != nil {
				return err
			}

			if noEnhanceFlag {
				svc.EnhanceEnabled = false
			}

			sess := sessions.Create(language)
			ext := strings.TrimPrefix(filepath.Ext(args[0]), ".")
			asset := session.NewAudioAsset(data, ext, session.SourceUploaded)

			if saveAudioFlag != "" {
				if err := saveEnhancedAudio(svc, asset, saveAudioFlag); err != nil {
					return err
				}
			}

			result, err := svc.Transcribe(cmd.Context(), service.TranscribeRequest{
				SessionID:      sess.ID,
				Asset:          asset,
				Tier:           tier,
				Language:       language,
				WordTimestamps: !noTimestamps,
			})
			if err != nil {
				return err
			}

			rendered, err := export.Render(result, format)
			if err != nil {
				return err
			}

			if outputFlag != "" {
				if err := os.WriteFile(outputFlag, rendered, 0644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Result written to %s\n", outputFlag)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(rendered))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tierFlag, "tier", "t", "", "Model tier (tiny, base, small, medium, large)")
	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language code or \"auto\"")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "report", "Output format: txt, json, report")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write result to file instead of stdout")
	cmd.Flags().BoolVar(&noEnhanceFlag, "no-enhance", false, "Skip audio enhancement")
	cmd.Flags().BoolVar(&noTimestamps, "no-timestamps", false, "Disable word timestamps")
	cmd.Flags().StringVar(&saveAudioFlag, "save-audio", "", "Save preprocessed audio to wav or mp3 file")

	return cmd
}

// saveEnhancedAudio сохраняет препроцессированный сигнал для прослушивания
func saveEnhancedAudio(svc *service.TranscriptionService, asset *session.AudioAsset, path string) error {
	processed, _, err := svc.Preprocess(asset)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		data, err := audio.EncodeMP3(processed.Waveform, processed.SampleRate)
		if err != nil {
			return fmt.Errorf("encode mp3: %w", err)
		}
		return os.WriteFile(path, data, 0644)
	default:
		return audio.WriteWAVFile(path, processed.Waveform, processed.SampleRate)
	}
}
