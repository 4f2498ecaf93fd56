package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/vidsplit-go/internal/app"
)

var (
	serverURL   string
	configPath  string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "vidsplit",
		Short: "vidsplit - fetch videos that fit a transport size limit",
		Long: `A command-line interface for vidsplit.

Videos from YouTube and Instagram are downloaded in the best quality that
fits the configured size limit and split into parts when they do not.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(fetchCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if err := newServerStarter(serverURL, configPath, config).ensure(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Start a session on the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		requester, _ := cmd.Flags().GetString("requester")
		wait, _ := cmd.Flags().GetBool("wait")

		resp, err := newAPIClient(serverURL).submit(requester, args[0], wait)
		exitOnError(err)

		fmt.Printf("Session: %s\n", resp.SessionID)
		fmt.Printf("Requester: %s\n", resp.RequesterID)
		if resp.Outcome != nil {
			printOutcome(os.Stdout, resp.Outcome)
		}
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		sessions, err := newAPIClient(serverURL).sessions()
		exitOnError(err)
		printSessions(os.Stdout, sessions)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [requester]",
	Short: "Cancel the active session of a requester",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		exitOnError(newAPIClient(serverURL).cancel(args[0]))
		fmt.Println("Cancellation requested")
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [url]",
	Short: "Show the format candidates for a URL without downloading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		plan, err := newAPIClient(serverURL).plan(args[0])
		exitOnError(err)
		printPlan(os.Stdout, plan)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show session, error or download logs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		date, _ := cmd.Flags().GetString("date")
		query, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := newAPIClient(serverURL).logs(args[0], date, query, limit)
		exitOnError(err)

		for _, e := range entries {
			line := e.Message
			if e.Timestamp != "" {
				line = fmt.Sprintf("%s %-5s %s", e.Timestamp, e.Level, e.Message)
			}
			for k, v := range e.Fields {
				line += fmt.Sprintf(" %s=%v", k, v)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	submitCmd.Flags().StringP("requester", "r", "cli", "Requester ID the session is registered under")
	submitCmd.Flags().BoolP("wait", "w", false, "Wait for the session to finish")
	logsCmd.Flags().StringP("date", "d", "", "Log date (YYYY-MM-DD), defaults to today")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum number of entries")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
