package jsx

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobstream/pkg/api"
)

func newRunCmd() *cobra.Command {
	var (
		jobID     string
		dir       string
		target    string
		simulated bool
		follow    bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Start a job on the server",
		Long: "Start a job and print its id. With --follow the command attaches to the\n" +
			"job's log stream and stays until it finishes. With --simulated no command\n" +
			"is needed; the server runs its built-in fake clone workload.",
		Args: func(cmd *cobra.Command, args []string) error {
			if simulated {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newJobClient()
			if err != nil {
				return err
			}

			req := api.StartJobRequest{JobID: jobID, Dir: dir, Target: target, Simulated: simulated}
			if !simulated {
				req.Command = args[0]
				req.Args = args[1:]
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			ack, err := c.StartJob(ctx, req)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to start job: %w", err)
			}

			fmt.Printf("Job started: %s\n", ack.JobID)
			if ack.Target != "" {
				fmt.Printf("Target: %s\n", ack.Target)
			}

			if !follow {
				return nil
			}
			return followLogs(cmd.Context(), c, ack.JobID)
		},
	}

	cmd.Flags().StringVar(&jobID, "id", "", "Job id (server assigns one when empty)")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for the command")
	cmd.Flags().StringVar(&target, "target", "", "Result location reported in the terminal event")
	cmd.Flags().BoolVar(&simulated, "simulated", false, "Run the server's simulated clone workload")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Attach to the log stream after starting")
	return cmd
}
