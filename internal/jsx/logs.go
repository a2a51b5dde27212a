package jsx

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobstream/pkg/api"
	"jobstream/pkg/client"
)

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <jobID>",
		Short: "Stream a job's logs",
		Long:  "Replay the job's buffered history and follow live output until the job finishes or the stream is interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newJobClient()
			if err != nil {
				return err
			}
			return followLogs(cmd.Context(), c, args[0])
		},
	}
}

// followLogs prints a job's event stream: stdout lines to stdout, stderr
// lines to stderr, and a closing summary from the terminal event.
func followLogs(ctx context.Context, c *client.JobClient, jobID string) error {
	return c.StreamLogs(ctx, jobID, func(ev api.Event) error {
		switch ev.Type {
		case api.EventBootstrap:
			for _, inner := range ev.Events {
				printEvent(inner)
			}
		case api.EventHello:
			// Seam between history and live output; nothing to print.
		default:
			printEvent(ev)
		}
		return nil
	})
}

func printEvent(ev api.Event) {
	switch ev.Type {
	case api.EventLog:
		if ev.Stream == "stderr" {
			fmt.Fprint(os.Stderr, ev.Line)
		} else {
			fmt.Print(ev.Line)
		}
	case api.EventDone:
		code := int32(0)
		if ev.Code != nil {
			code = *ev.Code
		}
		fmt.Printf("Job %s finished: %s (exit code %d)\n", ev.JobID, ev.Outcome, code)
		if ev.Target != "" {
			fmt.Printf("Target: %s\n", ev.Target)
		}
	}
}
