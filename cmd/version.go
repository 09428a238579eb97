package cmd

import (
	"fmt"
	"runtime"

	"github.com/ethpandaops/godwoken-proxy/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of godwoken-proxy.",
	Long:  `Prints the version of godwoken-proxy.`,
	Run: func(cmd *cobra.Command, args []string) {
		initCommon()

		fmt.Printf("Version: %s\nCommit: %s\nOS/Arch: %s/%s\n",
			version.Release, version.GitCommit, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
