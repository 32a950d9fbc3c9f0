package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSubscriptionCmd создаёт группу команд для управления подписками.
func NewSubscriptionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage webhook subscriptions",
	}

	cmd.AddCommand(
		newSubscriptionListCmd(clientFn, outputFn),
		newSubscriptionCreateCmd(clientFn, outputFn),
		newSubscriptionShowCmd(clientFn, outputFn),
		newSubscriptionUpdateCmd(clientFn, outputFn),
		newSubscriptionDeleteCmd(clientFn, outputFn),
		newSubscriptionRotateCmd(clientFn, outputFn),
		newSubscriptionTestCmd(clientFn, outputFn),
	)

	return cmd
}

func subscriptionRow(s SubscriptionResponse) []string {
	return []string{
		s.ID,
		s.URL,
		strings.Join(s.Events, ","),
		strconv.FormatBool(s.Active),
		s.CreatedAt,
	}
}

func newSubscriptionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string
	var active string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			subs, err := client.ListSubscriptions(ListSubscriptionsOpts{
				AccountID: accountID,
				Active:    active,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "URL", "EVENTS", "ACTIVE", "CREATED"}
			rows := make([][]string, len(subs))
			for i, s := range subs {
				rows[i] = subscriptionRow(s)
			}

			out.Print(headers, rows, subs)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "Filter by account ID")
	cmd.Flags().StringVar(&active, "active", "", "Filter by active flag (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newSubscriptionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string
	var events []string

	cmd := &cobra.Command{
		Use:   "create URL",
		Short: "Register a webhook subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if accountID == "" {
				return fmt.Errorf("--account-id is required")
			}
			if len(events) == 0 {
				return fmt.Errorf("at least one --event is required")
			}

			resp, err := client.CreateSubscription(CreateSubscriptionRequest{
				AccountID: accountID,
				URL:       args[0],
				Events:    events,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Subscription created: %s", resp.Subscription.ID))
			out.Success(fmt.Sprintf("Secret (shown once, store it now): %s", resp.Secret))
			out.Print(
				[]string{"ID", "URL", "EVENTS", "ACTIVE", "CREATED"},
				[][]string{subscriptionRow(resp.Subscription)},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "Owner account ID")
	cmd.Flags().StringSliceVar(&events, "event", nil, "Event type to subscribe to (repeatable)")

	return cmd
}

func newSubscriptionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show subscription details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sub, err := client.GetSubscription(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "URL", "EVENTS", "ACTIVE", "SECRET", "CREATED"},
				[][]string{{sub.ID, sub.URL, strings.Join(sub.Events, ","), strconv.FormatBool(sub.Active), sub.MaskedSecret, sub.CreatedAt}},
				sub,
			)
			return nil
		},
	}
}

func newSubscriptionUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var targetURL string
	var events []string
	var active bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var req UpdateSubscriptionRequest
			if cmd.Flags().Changed("url") {
				req.URL = &targetURL
			}
			if cmd.Flags().Changed("event") {
				req.Events = &events
			}
			if cmd.Flags().Changed("active") {
				req.Active = &active
			}

			sub, err := client.UpdateSubscription(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Subscription updated: %s", sub.ID))
			out.Print(
				[]string{"ID", "URL", "EVENTS", "ACTIVE", "CREATED"},
				[][]string{subscriptionRow(*sub)},
				sub,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "New delivery URL")
	cmd.Flags().StringSliceVar(&events, "event", nil, "New event filter (repeatable, replaces the old one)")
	cmd.Flags().BoolVar(&active, "active", true, "Enable or disable the subscription")

	return cmd
}

func newSubscriptionDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSubscription(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Subscription deleted: %s", args[0]))
			return nil
		},
	}
}

func newSubscriptionRotateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate ID",
		Short: "Rotate the subscription secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.RotateSecret(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Secret rotated for subscription %s", resp.Subscription.ID))
			out.Success(fmt.Sprintf("New secret (shown once, store it now): %s", resp.Secret))
			if out.jsonMode {
				out.JSON(resp)
			}
			return nil
		},
	}
}

func newSubscriptionTestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var event string

	cmd := &cobra.Command{
		Use:   "test ID",
		Short: "Send a test delivery to a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			delivery, err := client.TestSubscription(args[0], TestRequest{Event: event})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Test delivery: %s (%s)", delivery.ID, delivery.Status))
			out.Print(
				[]string{"ID", "EVENT", "STATUS", "ATTEMPTS", "HTTP", "ERROR"},
				[][]string{deliveryRow(*delivery)},
				delivery,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "Event type (default: first event in the subscription filter)")

	return cmd
}
