package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/store"
)

func newAppointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"citas"},
		Short:   "Inspect stored appointments",
	}
	cmd.AddCommand(newAppointmentsListCmd())
	return cmd
}

type listOptions struct {
	owner  string
	client string
	from   string
	to     string
	asJSON bool
}

func newAppointmentsListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments, soonest first",
		Example: `  agendabot appointments list --from hoy --to "pasado mañana"
  agendabot appointments list --owner irc:ana --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg, paths.Database(&cfg), log)
			if err != nil {
				return err
			}
			defer closeStore()

			return listAppointments(cmd.Context(), cmd.OutOrStdout(), st, datetime.New(loc, nil), opts)
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", "", "only appointments booked by this user id (e.g. irc:ana)")
	cmd.Flags().StringVar(&opts.client, "client", "", "client name contains")
	cmd.Flags().StringVar(&opts.from, "from", "", "first day, inclusive (e.g. hoy, 2025-06-10)")
	cmd.Flags().StringVar(&opts.to, "to", "", "last day, inclusive")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func listAppointments(ctx context.Context, out io.Writer, st store.Appointments, norm *datetime.Normalizer, opts listOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var f domain.Filter
	if opts.client != "" {
		f.Field = domain.FieldClientName
		f.Value = opts.client
	}
	if opts.from != "" {
		t, ok := norm.Normalize(opts.from)
		if !ok {
			return fmt.Errorf("--from: cannot read %q as a date", opts.from)
		}
		f.From = datetime.StartOfDay(t)
	}
	if opts.to != "" {
		t, ok := norm.Normalize(opts.to)
		if !ok {
			return fmt.Errorf("--to: cannot read %q as a date", opts.to)
		}
		f.To = datetime.StartOfDay(t).AddDate(0, 0, 1)
	}

	list, err := st.Query(ctx, opts.owner, f)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []domain.Appointment{}
		}
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No appointments.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCLIENT\tPROJECT\tMODALITY\tOWNER\tREMINDED")
	for _, a := range list {
		reminded := "-"
		if len(a.NotifiedOffsets) > 0 {
			reminded = fmt.Sprint(a.NotifiedOffsets)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.OccursAt.In(norm.Location()).Format(datetime.Layout),
			a.ClientName, a.Project, a.Modality, a.OwnerID, reminded)
	}
	return tw.Flush()
}

// startOfToday is used by status for the upcoming count.
func startOfToday(loc *time.Location) time.Time {
	return datetime.StartOfDay(time.Now().In(loc))
}
