// Command relayd runs the trade-copy relay daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "relayd",
		Short: "Trade-copy relay daemon",
	}
	bindGlobalFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the relayd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			short, err := cmd.Flags().GetBool("short")
			if err != nil {
				return err
			}
			if short {
				fmt.Println(version)
				return nil
			}
			fmt.Printf("relayd %s\n", version)
			return nil
		},
	}
	cmd.Flags().BoolP("short", "s", false, "print only the bare version string")
	return cmd
}

// bindGlobalFlags attaches the root persistent flags on the pflag.FlagSet
// cobra exposes, keeping the CLI's flag parsing layered the same way the
// rest of the ecosystem does: cobra for command dispatch, pflag
// underneath for the flags themselves.
func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config-dir", defaultConfigDir(), "directory holding config.base.yaml / config.<env>.yaml")
	fs.String("env", "", "environment overlay name (defaults to $RELAYD_ENV, then \"dev\")")
}

func defaultConfigDir() string {
	return "~/.relayd"
}
