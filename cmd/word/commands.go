package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AxelotlZoons/Word/internal/bus"
	"github.com/AxelotlZoons/Word/internal/config"
	"github.com/AxelotlZoons/Word/internal/deps"
	"github.com/AxelotlZoons/Word/internal/resolve"
	"github.com/AxelotlZoons/Word/internal/spotter"
	"github.com/AxelotlZoons/Word/internal/tui"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func query(cmd byte) (bus.Reply, error) {
	resp, err := bus.SendCommand(cmd)
	if err != nil {
		return bus.Reply{}, err
	}
	return bus.ParseReply(resp)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := query(bus.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			renderStatus(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func renderStatus(w io.Writer, reply bus.Reply) {
	table := newTable(w, "Field", "Value")
	for _, f := range reply.Fields {
		value := f.Value
		if f.Key == "state" {
			value = tui.RenderStatus(value)
		}
		table.Append([]string{f.Key, value})
	}
	table.Render()
}

func countsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show keyword counts of the running pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := query(bus.CmdCounts)
			if err != nil {
				return fmt.Errorf("failed to get counts: %w", err)
			}
			renderCounts(cmd.OutOrStdout(), replyCounts(reply))
			return nil
		},
	}
}

func replyCounts(reply bus.Reply) spotter.Snapshot {
	snap := make(spotter.Snapshot, 0, len(reply.Fields))
	for _, f := range reply.Fields {
		n, _ := strconv.Atoi(f.Value)
		snap = append(snap, spotter.Count{Keyword: f.Key, Count: n})
	}
	return snap
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Drain and stop the running pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStop)
			if err != nil {
				return fmt.Errorf("failed to stop: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version, and the daemon's protocol when one is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "word %s (protocol %s)\n", version, bus.ProtoVer)

			reply, err := query(bus.CmdVersion)
			if errors.Is(err, bus.ErrNotRunning) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get daemon version: %w", err)
			}
			fmt.Fprintf(out, "running: word %s (protocol %s)\n", reply.Get("version"), reply.Get("proto"))
			return nil
		},
	}
}

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "List the keywords and the word forms counted for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			spot, err := spotter.New(cfg.Spotter.Keywords, cfg.Spotter.ConfidenceThreshold)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "Keyword", "Forms")
			for _, e := range spot.Entries() {
				table.Append([]string{e.Root, strings.Join(e.Forms, ", ")})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "\nconfidence threshold: %v\n", spot.Threshold())
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runDoctor(cmd.OutOrStdout(), cfg)
		},
	}
}

func runDoctor(w io.Writer, cfg *config.Config) error {
	tools := deps.Tools(cfg.Decoder.Command, cfg.Source.Resolver, cfg.Source.Resolve,
		cfg.Notifications.Enabled && cfg.Notifications.Type == "desktop")
	results, ok := deps.CheckAll(tools)

	table := newTable(w, "Tool", "Status", "Version", "Used for")
	for _, r := range results {
		status := tui.StyleSuccess.Render("ok")
		switch {
		case !r.Installed && r.Required:
			status = tui.StyleError.Render("missing")
		case !r.Installed:
			status = tui.StyleWarning.Render("missing")
		}
		table.Append([]string{r.Name, status, r.Version, r.Purpose})
	}
	table.Render()

	fmt.Fprintln(w)
	if cfg.APIKey() == "" {
		fmt.Fprintf(w, "%s no Deepgram API key (providers.deepgram.api_key or %s)\n", tui.StyleError.Render("✗"), config.APIKeyEnv)
		ok = false
	} else {
		fmt.Fprintf(w, "%s Deepgram API key found\n", tui.StyleSuccess.Render("✓"))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "%s %v\n", tui.StyleError.Render("✗"), err)
		ok = false
	}

	if !ok {
		return errors.New("doctor found problems")
	}
	return nil
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(viper.GetString("config"))
		},
	}
}

func runConfigure(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Println(tui.StyleWarning.Render("Saved with a problem: " + err.Error()))
	}
	if err := config.Save(result.Config, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if path == "" {
		path, _ = config.GetConfigPath()
	}
	fmt.Println()
	fmt.Println(tui.StyleSuccess.Render("Configuration saved to " + path))
	fmt.Println("Start counting with: word run")
	return nil
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the direct media URL ffmpeg would be given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			resolved, err := resolve.New(cfg.ToResolveConfig()).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resolved)
			return nil
		},
	}
}
