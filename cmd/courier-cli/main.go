// Courier CLI — инструмент командной строки для управления
// подписками, доставками и событиями через HTTP API.
//
// Использование:
//
//	courier [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	subscription  Управление webhook-подписками
//	delivery      Журнал доставок и redelivery
//	event         Публикация доменных событий
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scroungers/courier/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "courier",
		Short:         "Courier CLI — webhook delivery engine tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSubscriptionCmd(clientFn, outputFn),
		cli.NewDeliveryCmd(clientFn, outputFn),
		cli.NewEventCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
