package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kikitori/audio"
	"kikitori/internal/export"
	"kikitori/internal/service"
	"kikitori/models"
	"kikitori/session"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		durationFlag   time.Duration
		deviceFlag     string
		outputFlag     string
		transcribeFlag bool
		tierFlag       string
		languageFlag   string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio from the microphone",
		RunE: func(cmd *cobra.Command, args []string) error {
			capture, err := audio.NewCapture()
			if err != nil {
				return fmt.Errorf("init audio capture: %w", err)
			}
			defer capture.Close()

			if deviceFlag != "" {
				if err := capture.SetDeviceByName(deviceFlag); err != nil {
					return err
				}
			}

			capture.ClearBuffer()
			if err := capture.Start(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recording %s of audio...\n", durationFlag)

			var samples []float32
			deadline := time.After(durationFlag)
		loop:
			for {
				select {
				case chunk := <-capture.Data():
					samples = append(samples, chunk...)
				case <-deadline:
					break loop
				case <-cmd.Context().Done():
					capture.Stop()
					return cmd.Context().Err()
				}
			}
			capture.Stop()

			if len(samples) == 0 {
				return fmt.Errorf("no audio captured")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captured %.1fs of audio\n",
				float64(len(samples))/audio.TargetSampleRate)

			if outputFlag != "" {
				if err := saveRecording(outputFlag, samples); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording saved to %s\n", outputFlag)
			}

			if !transcribeFlag {
				return nil
			}

			return transcribeRecording(ctx, cmd, samples, tierFlag, languageFlag)
		},
	}

	cmd.Flags().DurationVarP(&durationFlag, "duration", "d", 10*time.Second, "Recording duration")
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Capture device name (partial match)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save recording to wav or mp3 file")
	cmd.Flags().BoolVar(&transcribeFlag, "transcribe", false, "Transcribe the recording after capture")
	cmd.Flags().StringVarP(&tierFlag, "tier", "t", "", "Model tier for transcription")
	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language code or \"auto\"")

	return cmd
}

func saveRecording(path string, samples []float32) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		data, err := audio.EncodeMP3(samples, audio.TargetSampleRate)
		if err != nil {
			return fmt.Errorf("encode mp3: %w", err)
		}
		return os.WriteFile(path, data, 0644)
	default:
		return audio.WriteWAVFile(path, samples, audio.TargetSampleRate)
	}
}

func transcribeRecording(ctx *commandContext, cmd *cobra.Command, samples []float32, tierFlag, languageFlag string) error {
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

	modelMgr, err := ctx.ensureModelManager()
	if err != nil {
		return err
	}
	if err := modelMgr.EnsureTier(cmd.Context(), tier); err != nil {
		return err
	}

	sess := sessions.Create(language)
	asset := session.NewAudioAsset(
		audio.EncodeWAV(samples, audio.TargetSampleRate), "wav", session.SourceRecorded)

	result, err := svc.Transcribe(cmd.Context(), service.TranscribeRequest{
		SessionID:      sess.ID,
		Asset:          asset,
		Tier:           tier,
		Language:       language,
		WordTimestamps: cfg.Transcribe.WordTimestamps,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), export.Report(result))
	return nil
}
