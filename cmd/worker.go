/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warapp/apiserver/config"
	"github.com/warapp/apiserver/internal/mailer"
	"github.com/warapp/apiserver/internal/mq"
	"github.com/warapp/apiserver/pkg/logger"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the activation email delivery worker",
	Long: `Runs the activation email delivery worker. It drains the email
channel of the configured broker and sends each message over SMTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		log.Logger = logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

		queue, err := mq.NewFromConfig(cmd.Context(), cfg.Broker)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect broker: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = queue.Close()
		}()

		consumer := mailer.NewConsumer(queue, cfg.Broker.EmailChannel, mailer.NewSMTPMailer(cfg.SMTP), log.Logger)

		log.Info().Str("channel", cfg.Broker.EmailChannel).Msg("email worker started")
		if err := consumer.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
