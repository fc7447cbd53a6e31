/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/lucas6028/silver-server/config"
	"github.com/lucas6028/silver-server/internal/db"
	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/mq"
	"github.com/lucas6028/silver-server/internal/relay"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/spf13/cobra"
)

// relayCmd represents the relay command. The relay worker consumes
// assignment events and writes notification records for recipients.
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Starts the notification relay worker",
	Long: `Starts the notification relay worker. Usage:

	silver relay
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		log := logger.New("relay")
		defer func() {
			_ = log.Sync()
		}()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = dbConn.Close()
		}()

		bus, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect message broker: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = bus.Close()
		}()

		worker := relay.New(store.NewNotificationRepository(dbConn), bus, log)
		if err := worker.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "relay error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}
