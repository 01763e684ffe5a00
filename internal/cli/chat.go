package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/reminder"
	"github.com/soyeahso/agendabot/internal/routing"
)

// localUserID owns everything booked from the terminal.
const localUserID = "cli:local"

func newChatCmd() *cobra.Command {
	var (
		user          string
		withReminders bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long: "Starts an interactive session on stdin/stdout. Appointments are stored " +
			"under the given user id, so they show up in the same store serve uses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			// Keep the terminal for the conversation.
			if logLevel == "" {
				log = logging.New(os.Stderr, "warn")
			}

			a, err := newApp(cfg, paths.Database(&cfg), log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := &syncWriter{w: cmd.OutOrStdout()}
			g, gctx := errgroup.WithContext(ctx)
			if withReminders && cfg.Reminders.IsEnabled() {
				rcfg, err := schedulerConfig(cfg.Reminders, a.loc)
				if err != nil {
					return err
				}
				sched, err := reminder.New(rcfg, a.store, &printDispatcher{user: user, out: out}, a.hooks, nil, log)
				if err != nil {
					return err
				}
				g.Go(func() error { return sched.Run(gctx) })
			}
			g.Go(func() error {
				defer stop()
				return runREPL(gctx, cmd.InOrStdin(), out, a.manager, user)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&user, "user", localUserID, "user id owning the conversation")
	cmd.Flags().BoolVar(&withReminders, "reminders", true, "print reminders for this user while chatting")
	return cmd
}

// runREPL reads one message per line and prints the reply. It returns when
// in is exhausted, the user types /salir, or ctx is cancelled.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, h routing.Handler, userID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-scanErr
			}
			text := strings.TrimSpace(line)
			switch text {
			case "":
				fmt.Fprint(out, "> ")
				continue
			case "/salir", "/exit", "/quit":
				return nil
			}

			res, err := h.Handle(ctx, userID, text)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n> ", err)
				continue
			}
			if res.Reply != "" {
				fmt.Fprintln(out, res.Reply)
			}
			fmt.Fprint(out, "> ")
		}
	}
}

// printDispatcher delivers reminders for one user to the terminal.
type printDispatcher struct {
	user string
	out  io.Writer
}

func (d *printDispatcher) Notify(_ context.Context, userID, text string) error {
	if userID != d.user {
		return fmt.Errorf("user %s is not on this terminal", userID)
	}
	_, err := fmt.Fprintf(d.out, "\n[recordatorio] %s\n> ", text)
	return err
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
