package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/credbroker/internal/config"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/metrics"
)

// NewRootCommand builds the credbroker command tree around rt.
func NewRootCommand(rt *Runtime, info BuildInfo) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "credbroker",
		Short: "Git credential helper for GitHub and Azure DevOps",
		Long: `credbroker is a git credential helper. It keeps credentials in the OS
credential store, mints Azure DevOps personal access tokens from Azure AD and
Microsoft account sign-ins, and handles GitHub two-factor logons.

Configure git to use it:
  git config --global credential.helper credbroker`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt.Config.Path = configFile
			rt.Config.Required = cmd.Flags().Changed("config")
			if rt.Config.Path == "" {
				rt.Config.Path = config.DefaultPath()
			}
			rt.Config.Debug = debug
			if err := rt.Config.Load(); err != nil {
				return err
			}
			// CREDBROKER_DEBUG is only known once the configuration is loaded.
			rt.Config.Logger = logging.New(rt.Config.Debug, noColor)
			metrics.InitMetrics()
			return nil
		},
	}

	rootCmd.SetIn(rt.Stdin)
	rootCmd.SetOut(rt.Stdout)
	rootCmd.SetErr(rt.Stderr)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default $XDG_CONFIG_HOME/credbroker/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		NewGetCommand(rt),
		NewStoreCommand(rt),
		NewEraseCommand(rt),
		NewLogoutCommand(rt),
		NewDetectCommand(rt),
		NewVersionCommand(rt, info),
	)

	return rootCmd
}
