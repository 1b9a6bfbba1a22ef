package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kimai-deck/internal/app"
)

func addRun(topLevel *cobra.Command, ro *rootOptions) {
	var (
		addr   string
		noHTTP bool
		noKeys bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the deck until interrupted.",
		Long: `Run attaches every configured key, recovers a running entry and serves the
HTTP trigger endpoints. Type a key name or its position on stdin and press
enter to press it.`,
		Example: `
kimai-deck run
kimai-deck run --addr :8787
echo dev | kimai-deck run --no-http
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := ro.log
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, log, ro.cfg, cmd.OutOrStdout())
			if err != nil {
				log.Error("failed to initialize app", slog.String("error", err.Error()))
				return err
			}
			defer a.Close()
			if len(a.Keys()) == 0 {
				log.Warn("no keys configured", slog.String("config", ro.cfg.Path))
			}

			if !noHTTP {
				if addr == "" {
					addr = ro.cfg.HTTP.Addr
				}
				srv := a.HTTPServer(addr)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("http server failed", slog.String("error", err.Error()))
						stop()
					}
				}()
				defer func() {
					c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(c)
				}()
			}
			if !noKeys {
				go readPresses(ctx, log, a, cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default: $KIMAI_DECK_HTTP_ADDR or 127.0.0.1:8787)")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not start the HTTP trigger server")
	cmd.Flags().BoolVar(&noKeys, "no-stdin", false, "do not read key presses from stdin")
	topLevel.AddCommand(cmd)
}

// readPresses presses one key per input line until in is exhausted.
func readPresses(ctx context.Context, log *slog.Logger, a *app.App, in io.Reader, errOut io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		name, ok := a.Lookup(token)
		if !ok {
			fmt.Fprintf(errOut, "unknown key %q, have: %s\n", token, strings.Join(a.Keys(), ", "))
			continue
		}
		if err := a.Press(ctx, name); err != nil {
			log.Warn("press not delivered", slog.String("key", name), slog.Any("error", err))
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Warn("reading key presses failed", slog.Any("error", err))
	}
}
