package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		writeVersion(cmd.OutOrStdout(), GetAppIdentity().BinaryName, extended)
		return nil
	},
}

func writeVersion(w io.Writer, binary string, extended bool) {
	fmt.Fprintf(w, "%s %s\n", binary, versionInfo.Version)
	if !extended {
		return
	}

	fmt.Fprintf(w, "Commit: %s\n", versionInfo.Commit)
	fmt.Fprintf(w, "Built: %s\n", versionInfo.BuildDate)
	fmt.Fprintf(w, "Go: %s\n", runtime.Version())
	fmt.Fprintln(w)

	version := crucible.GetVersion()
	fmt.Fprintf(w, "Gofulmen: %s\n", version.Gofulmen)
	fmt.Fprintf(w, "Crucible: %s\n", version.Crucible)
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
