package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "faceattend",
	Short: "Face recognition attendance system",
	Long: `faceattend registers students from a single photo, trains a face
recognizer on the roster of a class and records attendance from camera
frames. It runs as an HTTP service or as one-off commands.`,
	SilenceUsage: true,
}

// Execute führt das Root-Kommando aus
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")
}
