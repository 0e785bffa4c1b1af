package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kikitori/models"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage transcription models",
	}

	cmd.AddCommand(newModelsListCommand(ctx))
	cmd.AddCommand(newModelsDownloadCommand(ctx))

	return cmd
}

func newModelsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available model tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mgr, err := ctx.ensureModelManager()
			if err != nil {
				return err
			}

			policy := cfg.Policy()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tSIZE\tSPEED\tACCURACY\tSTATUS")
			for _, info := range models.Registry {
				status := "available"
				switch {
				case !policy.Allowed(info.Tier):
					status = "excluded by policy"
				case mgr.IsTierDownloaded(info.Tier):
					status = "downloaded"
				}
				name := string(info.Tier)
				if info.Recommended {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					name, info.Size, info.Speed, info.Accuracy, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\n* recommended")
			return nil
		},
	}
}

func newModelsDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download <tier>",
		Short: "Download model files for a tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := models.ParseTier(args[0])
			if err != nil {
				return err
			}

			mgr, err := ctx.ensureModelManager()
			if err != nil {
				return err
			}

			if mgr.IsTierDownloaded(tier) {
				fmt.Fprintf(cmd.OutOrStdout(), "Tier %s is already downloaded\n", tier)
				return nil
			}

			mgr.SetProgressCallback(func(t models.Tier, progress float64, err error) {
				if err != nil {
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\rDownloading %s: %.1f%%", t, progress)
			})

			if err := mgr.EnsureTier(cmd.Context(), tier); err != nil {
				fmt.Fprintln(cmd.OutOrStdout())
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTier %s downloaded\n", tier)
			return nil
		},
	}
}
