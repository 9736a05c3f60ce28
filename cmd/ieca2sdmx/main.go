package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags are bound to a viper instance
// that also reads IECA2SDMX_* environment variables.
func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("IECA2SDMX")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "ieca2sdmx",
		Short: "IECA2SDMX - convert IECA/BADEA query results into SDMX observations",
		Long: `IECA2SDMX reads stored IECA query results, reshapes them into SDMX
observation tables (one row per dimension combination and indicator) and
writes them to local disk, S3 or GCS. Codes can be translated through
per-dimension mapping tables.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file (defaults apply when empty)")
	root.PersistentFlags().Int("workers", 0, "Number of queries processed concurrently (0 keeps the configured value)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("workers", root.PersistentFlags().Lookup("workers"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "IECA2SDMX v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	processCmd := &cobra.Command{
		Use:   "process [query ids...]",
		Short: "Convert queries into observation files",
		Long: `Convert stored queries into SDMX observation files. Without arguments
every query in the configured queries directory is processed.

Example:
  ieca2sdmx process --config badea.yaml --map 1234 5678`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args, stagesFrom(v, false))
		},
	}
	processCmd.Flags().Bool("map", false, "Translate codes through the mapping tables")
	processCmd.Flags().Bool("templates", false, "Also write mapping templates")
	processCmd.Flags().String("format", "", "Output format (csv, jsonl, parquet, avro)")
	processCmd.Flags().String("compression", "", "Output compression (none, gzip, snappy, lz4, zstd, s2)")
	_ = v.BindPFlag("map", processCmd.Flags().Lookup("map"))
	_ = v.BindPFlag("templates", processCmd.Flags().Lookup("templates"))
	_ = v.BindPFlag("format", processCmd.Flags().Lookup("format"))
	_ = v.BindPFlag("compression", processCmd.Flags().Lookup("compression"))
	root.AddCommand(processCmd)

	root.AddCommand(&cobra.Command{
		Use:   "template [query ids...]",
		Short: "Write mapping templates without saving observations",
		Long: `Write one mapping template per mappable column, listing the codes found
in the given queries with empty targets. Without arguments every stored
query is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args, stagesFrom(v, true))
		},
	})

	return root
}
