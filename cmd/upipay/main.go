package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "upipay",
		Short:         "Unified UPI payments across Indian gateways",
		Long:          "upipay creates orders, checks payments and verifies webhooks against Razorpay, Cashfree, PhonePe, Paytm, Google Pay, BharatPe and PayU through one interface.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.providerName, "provider", "p", "", "Provider name (defaults to UPIPAY_PROVIDER)")
	flags.StringVarP(&app.environment, "env", "e", "", "production or sandbox (defaults to UPIPAY_ENVIRONMENT)")
	flags.StringVar(&app.envFile, "env-file", ".env", "Dotenv file to load when present")
	flags.IntVar(&app.retries, "retries", 1, "Attempts for calls that reach the provider")

	rootCmd.AddCommand(linkCmd(app))
	rootCmd.AddCommand(qrCmd(app))
	rootCmd.AddCommand(capabilitiesCmd(app))
	rootCmd.AddCommand(orderCmd(app))
	rootCmd.AddCommand(statusCmd(app))
	rootCmd.AddCommand(verifyCmd(app))
	rootCmd.AddCommand(refundCmd(app))
	rootCmd.AddCommand(webhookVerifyCmd(app))

	return rootCmd
}
