package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weberkan/raywatch/internal/ipc"
	"github.com/weberkan/raywatch/internal/watch"
)

func newCheckCmd() *cobra.Command {
	var flags watchFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single availability check",
		Long: "Performs one check cycle for a route and date and prints the result. " +
			"Suitable for cron. Exit codes: 0 nothing found, 1 ticket found, 2 error.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// The worker speaks the JSON event protocol; render it for humans.
			pr, pw := io.Pipe()
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				renderEvents(pr, out)
			}()

			emitter := ipc.NewEmitter(pw)
			opts, err := flags.buildOptions(emitter)
			if err != nil {
				pw.Close()
				wg.Wait()
				fmt.Fprintf(out, "setup failed: %v\n", err)
				return &exitCodeError{code: watch.ExitError}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code := watch.Run(ctx, opts)
			pw.Close()
			wg.Wait()
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// renderEvents decodes protocol lines from r and writes readable text to w.
func renderEvents(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if ev, ok := ipc.Decode(line); ok {
			fmt.Fprintln(w, ev.Render())
		} else if line != "" {
			fmt.Fprintln(w, line)
		}
	}
}
