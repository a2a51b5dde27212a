// Package jsx implements the jobstream command line client.
package jsx

import (
	"github.com/spf13/cobra"

	"jobstream/pkg/client"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "jsx",
	Short: "JSX - command line client for the jobstream server",
	Long:  "JSX starts jobs, follows their live log streams, and manages their lifecycle over the jobstream HTTP API",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080",
		"Base URL of the jobstream server")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newLogsCmd())
}

func newJobClient() (*client.JobClient, error) {
	return client.NewJobClient(serverAddr)
}
