package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/haywire/internal/cmd/client/transports"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	tr := func() transports.QueuesTransport { return transports.NewHTTPTransport(baseURL, nil) }
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Queue operations",
	}
	queueCmd.AddCommand(
		newQueueCreateCommand(tr),
		newQueueListCommand(tr),
		newQueueSendCommand(tr),
		newQueueReceiveCommand(tr),
		newQueuePeekCommand(tr),
		newQueueBrowseCommand(tr),
		newQueueStatsCommand(tr),
		newQueueShutdownCommand(tr),
	)
	return queueCmd
}

type transportFunc func() transports.QueuesTransport

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newQueueCreateCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			if err := tr().Create(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created:", name)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Queue name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newQueueListCommand(tr transportFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := tr().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newQueueSendCommand(tr transportFunc) *cobra.Command {
	headers := headerFlag{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			data, _ := cmd.Flags().GetString("data")
			cid, _ := cmd.Flags().GetString("correlation-id")
			res, err := tr().Send(cmd.Context(), transports.SendRequest{
				Queue:         name,
				Body:          []byte(data),
				Headers:       headers,
				CorrelationID: cid,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent: id=%s sequence=%d\n", res.ID, res.Sequence)
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().String("data", "", "Message body")
	cmd.Flags().String("correlation-id", "", "Correlation ID")
	cmd.Flags().Var(headers, "header", "Header key=value (repeatable)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueReceiveCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive messages, waiting up to --timeout for each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			count, _ := cmd.Flags().GetInt("count")
			if count <= 0 {
				count = 1
			}
			t := tr()
			for i := 0; i < count; i++ {
				m, err := t.Receive(cmd.Context(), name, timeout)
				if errors.Is(err, transports.ErrNoMessage) {
					fmt.Fprintln(cmd.OutOrStdout(), "no message")
					return nil
				}
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), decodedMessage(m)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for each message")
	cmd.Flags().Int("count", 1, "Number of messages to receive")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueuePeekCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Show the next undelivered message without taking it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			m, err := tr().Peek(cmd.Context(), name)
			if errors.Is(err, transports.ErrNoMessage) {
				fmt.Fprintln(cmd.OutOrStdout(), "no message")
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decodedMessage(m))
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueBrowseCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List stored messages, optionally filtered by a CEL expression",
		Example: `  haywire queue browse --queue orders --filter 'headers["type"] == "created"'
  haywire queue browse --queue orders --filter 'json.total > 100' --limit 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			filter, _ := cmd.Flags().GetString("filter")
			from, _ := cmd.Flags().GetUint64("from")
			limit, _ := cmd.Flags().GetInt("limit")
			msgs, err := tr().Browse(cmd.Context(), transports.BrowseRequest{
				Queue:   name,
				Filter:  filter,
				FromSeq: from,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			views := make([]map[string]any, 0, len(msgs))
			for _, m := range msgs {
				views = append(views, decodedMessage(m))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().String("filter", "", "CEL filter expression")
	cmd.Flags().Uint64("from", 0, "First sequence to consider")
	cmd.Flags().Int("limit", 0, "Maximum messages to return (0 for all)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newQueueStatsCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue stats (all queues when --queue is omitted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			stats, err := tr().Stats(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	return cmd
}

func newQueueShutdownCommand(tr transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop accepting messages; buffered messages stay receivable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("queue")
			if err := tr().Shutdown(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "shut down:", name)
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}
