package jsx

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newJobClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := c.CancelJob(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to cancel job: %w", err)
			}
			fmt.Printf("Cancellation requested for job %s\n", args[0])
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobID>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newJobClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			info, err := c.GetJob(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Job:      %s\n", info.JobID)
			fmt.Printf("Status:   %s\n", info.Status)
			if info.Simulated {
				fmt.Printf("Workload: simulated\n")
			} else {
				fmt.Printf("Command:  %s\n", info.Command)
			}
			if info.Pid != 0 {
				fmt.Printf("Pid:      %d\n", info.Pid)
			}
			if !info.StartTime.IsZero() {
				fmt.Printf("Started:  %s\n", info.StartTime.Format(time.RFC3339))
			}
			if info.EndTime != nil {
				fmt.Printf("Ended:    %s\n", info.EndTime.Format(time.RFC3339))
				fmt.Printf("ExitCode: %d\n", info.ExitCode)
			}
			if info.Target != "" {
				fmt.Printf("Target:   %s\n", info.Target)
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newJobClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			jobs, err := c.ListJobs(ctx)
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tSTATUS\tCOMMAND\tSTARTED")
			for _, job := range jobs {
				command := job.Command
				if job.Simulated {
					command = "(simulated)"
				}
				started := ""
				if !job.StartTime.IsZero() {
					started = job.StartTime.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", job.JobID, job.Status, command, started)
			}
			return w.Flush()
		},
	}
}
