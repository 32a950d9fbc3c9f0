package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDeliveryCmd создаёт группу команд для работы с журналом доставок.
func NewDeliveryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "Inspect and replay webhook deliveries",
	}

	cmd.AddCommand(
		newDeliveryListCmd(clientFn, outputFn),
		newDeliveryShowCmd(clientFn, outputFn),
		newDeliveryRedeliverCmd(clientFn, outputFn),
	)

	return cmd
}

func deliveryRow(d DeliveryResponse) []string {
	httpCode := ""
	if d.StatusCode != nil {
		httpCode = strconv.Itoa(*d.StatusCode)
	}
	return []string{
		d.ID,
		d.EventType,
		d.Status,
		strconv.Itoa(d.AttemptCount),
		orDash(httpCode),
		orDash(d.ErrorMessage),
	}
}

func newDeliveryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var subscriptionID string
	var status string
	var eventType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deliveries, err := client.ListDeliveries(ListDeliveriesOpts{
				SubscriptionID: subscriptionID,
				Status:         status,
				EventType:      eventType,
				Limit:          limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "EVENT", "STATUS", "ATTEMPTS", "HTTP", "ERROR"}
			rows := make([][]string, len(deliveries))
			for i, d := range deliveries {
				rows[i] = deliveryRow(d)
			}

			out.Print(headers, rows, deliveries)
			return nil
		},
	}

	cmd.Flags().StringVar(&subscriptionID, "subscription-id", "", "Filter by subscription ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, success, failed)")
	cmd.Flags().StringVar(&eventType, "event", "", "Filter by event type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDeliveryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show delivery details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			delivery, err := client.GetDelivery(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "SUBSCRIPTION", "EVENT", "STATUS", "ATTEMPTS", "NEXT_RETRY", "ERROR"},
				[][]string{{
					delivery.ID,
					delivery.SubscriptionID,
					delivery.EventType,
					delivery.Status,
					strconv.Itoa(delivery.AttemptCount),
					delivery.NextRetryAt,
					delivery.ErrorMessage,
				}},
				delivery,
			)
			return nil
		},
	}
}

func newDeliveryRedeliverCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "redeliver ID",
		Short: "Queue a delivery for another attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			delivery, err := client.Redeliver(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Redelivery scheduled: %s", delivery.ID))
			return nil
		},
	}
}
