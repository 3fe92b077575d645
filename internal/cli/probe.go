package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eliseohh/anydownbot/internal/downloader"
	"github.com/eliseohh/anydownbot/internal/logger"
	"github.com/eliseohh/anydownbot/internal/media"
)

// prober is satisfied by *downloader.YTDLP.
type prober interface {
	Probe(ctx context.Context, url string) (downloader.Info, error)
}

func newProbeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Show what the bot would download for a link, without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			ctx := logger.WithLogger(cmd.Context(), logger.L())
			return runProbe(ctx, cmd, downloader.New(cfg.DownloaderOptions()), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the probe result as JSON")
	return cmd
}

func runProbe(ctx context.Context, cmd *cobra.Command, p prober, raw string, asJSON bool) error {
	url, ok := media.ExtractURL(raw)
	if !ok || !media.IsSupported(url) {
		return fmt.Errorf("unsupported link %q (supported: %v)", raw, media.Names())
	}

	info, err := p.Probe(ctx, url)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(out, "Platform: %s\n", media.PlatformOf(url))
	fmt.Fprintf(out, "Title:    %s\n", info.Title)
	fmt.Fprintf(out, "Duration: %d minutes\n", info.DurationMinutes())
	if info.Uploader != "" {
		fmt.Fprintf(out, "Uploader: %s\n", info.Uploader)
	}
	return nil
}
