package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AxelotlZoons/Word/internal/config"
	"github.com/AxelotlZoons/Word/internal/daemon"
	"github.com/AxelotlZoons/Word/internal/spotter"
	"github.com/AxelotlZoons/Word/internal/tui"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream a source and count keywords until it ends or is stopped",
		Long: `Decodes the source with ffmpeg, streams it to Deepgram and counts the
configured keywords in the transcript. Ctrl-C drains the stream and exits;
a second Ctrl-C aborts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), viper.GetViper(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("source", "s", "", "stream URL (direct audio, YouTube or Twitch)")
	f.Bool("no-resolve", false, "pass page URLs to ffmpeg without yt-dlp")
	f.String("deepgram-api-key", "", "Deepgram API key")
	f.StringSlice("keywords", nil, "root keywords to count")
	f.Float64("threshold", spotter.DefaultThreshold, "minimum word confidence")
	f.String("counts-file", "", "counts output file")
	f.String("http-addr", "", "serve /counts and /status on this address")
	f.Bool("no-transcript", false, "do not echo transcripts")

	for _, name := range []string{"source", "no-resolve", "deepgram-api-key", "keywords", "threshold", "counts-file", "http-addr", "no-transcript"} {
		viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), f.Lookup(name))
	}
	return cmd
}

func runPipeline(ctx context.Context, v *viper.Viper, out io.Writer) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := daemon.Options{
		Config:        cfg,
		Output:        out,
		Version:       version,
		HandleSignals: true,
	}
	// A threshold given on the command line is not replaced by the file's.
	if !v.IsSet("threshold") {
		if m, err := config.NewManager(v.GetString("config")); err == nil {
			opts.Manager = m
		} else {
			log.Default().WithPrefix("config").Debug("hot reload disabled", "err", err)
		}
	}

	d, err := daemon.New(opts)
	if err != nil {
		return err
	}
	report, runErr := d.Run(ctx)
	if report.RunID != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s %s\n", tui.StyleLabel.Render("Run:"), tui.RenderStatus(string(report.State)))
		renderCounts(out, report.Counts)
	}
	return runErr
}

func renderCounts(w io.Writer, counts spotter.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Keyword", "Count"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	total := 0
	for _, c := range counts {
		table.Append([]string{c.Keyword, strconv.Itoa(c.Count)})
		total += c.Count
	}
	table.SetFooter([]string{"Total", strconv.Itoa(total)})
	table.Render()
}
