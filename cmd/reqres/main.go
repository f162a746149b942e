// Command reqres runs a request/response peer over TCP.
//
//	reqres serve                  answer echo and time requests, ask clients for their name
//	reqres call --type echo hi    send one request to a server
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "reqres",
	Short:         "Symmetric request/response peers over a named-message transport.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "load settings from this .env file instead of ./.env")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
