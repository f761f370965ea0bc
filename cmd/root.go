package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the clusterclient application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "clusterclient",
	Short: "Secure client for cluster-management APIs",
	Long: `clusterclient issues requests against a cluster-management API server
over a trust-policy-backed transport. It supports single request/response
calls and long-lived watch streams, with bearer-token, basic, or
anonymous credentials and a caller-supplied CA bundle for servers whose
certificates the system trust store does not cover.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	// This is useful for providing cleaner error output to the user.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "clusterclient version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra itself usually prints the error. Exiting with a non-zero status code
		// indicates that an error occurred during execution.
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newWatchCmd())
}
