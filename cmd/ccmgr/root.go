package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/myokoym/cc-tools-manager-sub001/internal/version"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
)

// exitCode distinguishes partial from total failure for scripts:
// 0 success, 1 fatal error, 2 deploy completed with per-file failures.
var exitCode int

var (
	verbosity int
	dryRun    bool
	force     bool

	rootCmd = &cobra.Command{
		Use:   "ccmgr",
		Short: "Manage Claude Code tool artifacts",
		Long: `ccmgr distributes commands, agents and hooks from version-controlled
repositories into your ~/.claude directory, tracking what was deployed
so it can be refreshed or removed safely.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Preview changes without touching the target tree")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Overwrite differing targets without prompting")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(showCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ccmgr version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}
