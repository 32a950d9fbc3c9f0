package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для работы с событиями.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Publish domain events",
	}

	cmd.AddCommand(
		newEventPublishCmd(clientFn, outputFn),
		newEventTypesCmd(clientFn, outputFn),
	)

	return cmd
}

func newEventPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string
	var data []string

	cmd := &cobra.Command{
		Use:   "publish EVENT_TYPE",
		Short: "Publish a domain event for webhook fan-out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := PublishEventRequest{
				Event:     args[0],
				AccountID: accountID,
			}

			if len(data) > 0 {
				req.Data = make(map[string]any)
				for _, kv := range data {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid data format %q, expected KEY=VALUE", kv)
					}
					req.Data[parts[0]] = parts[1]
				}
			}

			resp, err := client.PublishEvent(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event accepted: %s", resp.Event))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "Restrict fan-out to one account")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Event data as KEY=VALUE (repeatable)")

	return cmd
}

func newEventTypesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported event types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			types, err := client.ListEventTypes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t}
			}

			out.Print([]string{"EVENT_TYPE"}, rows, types)
			return nil
		},
	}
}
