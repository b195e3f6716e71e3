package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

var Version = "dev"

func main() {
	utils.InitLogger()

	rootCmd := &cobra.Command{
		Use:     "mesa-qr",
		Short:   "QR table ordering backend",
		Version: Version,
		RunE:    runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepTokensCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
