package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"signup-go/internal/client"
	"signup-go/internal/form"
)

var (
	endpoint string
	timeout  time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "signup [email]",
	Short:         "Subscribe an email address to the newsletter",
	Long:          `Submit an email address to the sign-up gateway and report the outcome.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSignup,
}

func init() {
	rootCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "http://localhost:8080/api/subscribe", "subscribe endpoint URL")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", client.DefaultTimeout, "request timeout")
}

func runSignup(cmd *cobra.Command, args []string) error {
	var email string
	if len(args) == 1 {
		email = args[0]
	}

	c := client.New(endpoint, client.WithHTTPClient(&http.Client{Timeout: timeout}))
	f := form.New(c, form.WithDismissDelay(0))
	f.Subscribe(func(s form.State) {
		if s.Phase == form.Submitting {
			fmt.Fprintln(cmd.ErrOrStderr(), "Subscribing...")
		}
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, err := f.Submit(ctx, email)
	if err != nil {
		return err
	}

	if state.Phase != form.Success {
		fmt.Fprintln(cmd.ErrOrStderr(), state.Message)
		return fmt.Errorf("subscription failed: %s", state.Message)
	}

	fmt.Fprintln(cmd.OutOrStdout(), state.Message)
	return nil
}
