// Package cli implements the larder command-line interface.
package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir    string
	dataDir      string
	modelFile    string
	modelVersion string
	logLevel     string
	jsonMode     bool
}

var flags rootFlags

// NewRootCmd creates the top-level "larder" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "larder",
		Short: "Inspect and edit a larder object store",
		Long: "Larder reads a schema document, opens the SQLite store built from it,\n" +
			"and creates, lists, links and deletes managed objects.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .larder-db)")
	root.PersistentFlags().StringVar(&flags.modelFile, "model", "", "schema document (default: <config-dir>/model.xml)")
	root.PersistentFlags().StringVar(&flags.modelVersion, "model-version", "", "schema version (default: the document's current version)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: off)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newSchemaCmd(),
		newImportCmd(),
		newListCmd(),
		newGetCmd(),
		newSetCmd(),
		newLinkCmd(),
		newUnlinkCmd(),
		newDeleteCmd(),
	)
	return root
}

// Execute loads .env, runs the root command and exits with the appropriate code.
func Execute() {
	loadDotEnv()
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}
