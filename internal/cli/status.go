package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agendabot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agendabot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}

			printStatus(out, cfg)
			printStoreStatus(cmd.Context(), out, cfg)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}
}

func printStatus(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "Timezone:  %s\n", cfg.Timezone)
	fmt.Fprintf(out, "Store:     %s\n", cfg.Store.Driver)

	if cfg.LLM.Provider == "" || cfg.LLM.Provider == "none" {
		fmt.Fprintln(out, "LLM:       none (rule extractor)")
	} else {
		fmt.Fprintf(out, "LLM:       %s model=%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	if cfg.Reminders.IsEnabled() {
		labels := make([]string, 0, len(cfg.Reminders.Offsets))
		for _, o := range cfg.Reminders.Offsets {
			labels = append(labels, o.Label+"="+o.Offset)
		}
		fmt.Fprintf(out, "Reminders: poll=%s offsets=%s report=%q\n",
			cfg.Reminders.PollInterval, strings.Join(labels, ","), cfg.Reminders.DailyReport)
	} else {
		fmt.Fprintln(out, "Reminders: disabled")
	}

	if cfg.Gateway.IsEnabled() {
		auth := "none"
		if cfg.Gateway.Token != "" {
			auth = "token"
		}
		fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, auth)
	} else {
		fmt.Fprintln(out, "Gateway:   disabled")
	}

	if irc := cfg.Channels.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:       server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	} else {
		fmt.Fprintln(out, "IRC:       (not configured)")
	}
	if ws := cfg.Channels.WebSocket; ws != nil && ws.Enabled {
		fmt.Fprintf(out, "WebSocket: path=%s\n", ws.Path)
	}
	if cfg.Sheets.Enabled {
		fmt.Fprintf(out, "Sheets:    %s/%s\n", cfg.Sheets.SpreadsheetID, cfg.Sheets.Sheet)
	}
	if n := len(cfg.Hooks.Commands); n > 0 {
		fmt.Fprintf(out, "Hooks:     %d command(s)\n", n)
	}
}

func printStoreStatus(ctx context.Context, out io.Writer, cfg config.Config) {
	if cfg.Store.Driver != "sqlite" {
		return
	}
	dbPath := paths.Database(&cfg)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(out, "Database:  %s (not created yet)\n", dbPath)
		return
	}
	st, closeStore, err := openStore(cfg, dbPath, log)
	if err != nil {
		fmt.Fprintf(out, "Database:  %s (error: %v)\n", dbPath, err)
		return
	}
	defer closeStore()

	if ctx == nil {
		ctx = context.Background()
	}
	total, err := st.Count(ctx)
	if err != nil {
		fmt.Fprintf(out, "Database:  %s (error: %v)\n", dbPath, err)
		return
	}
	upcoming := 0
	if loc, err := cfg.Location(); err == nil {
		list, err := st.Query(ctx, "", domain.Filter{From: startOfToday(loc)})
		if err == nil {
			upcoming = len(list)
		}
	}
	fmt.Fprintf(out, "Database:  %s (%d appointments, %d from today)\n", dbPath, total, upcoming)
}
