// Command ica computes the Actuarial Climate Index: it builds reference
// climatologies, derives monthly component anomalies and the composite index
// for every configured region, and analyses tide-gauge sea level records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	cfgFile      string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "ica",
	Short:         "Compute the Actuarial Climate Index from gridded reanalysis data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ica %s (built %s)\n", buildVersion, buildDate)
	},
}

func initFlags() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ica.yaml or /etc/ica/ica.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log_level)")

	referenceCmd.Flags().BoolVar(&overwriteReference, "overwrite", false, "replace existing reference sets")
	sealevelCmd.Flags().IntVar(&sealevelRefStart, "reference-start", 0, "first year of the anomaly baseline (default: whole record)")
	sealevelCmd.Flags().IntVar(&sealevelRefEnd, "reference-end", 0, "last year of the anomaly baseline (default: whole record)")

	rootCmd.AddCommand(referenceCmd, runCmd, sealevelCmd, versionCmd)
}

func main() {
	initFlags()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
