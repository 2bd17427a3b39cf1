package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/mq"
)

func newEventsCmd(g *globals) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "events [PATTERN]",
		Short: "Stream run events published with run --publish",
		Long: "Stream run events from RabbitMQ. PATTERN is a topic binding key,\n" +
			"for example \"task.failed\" or \"run.#\" (default \"#\").",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pattern := mq.RoutingKeyAll
			if len(args) == 1 {
				pattern = mq.RoutingKey(args[0])
			}

			logger := g.logger(cmd)
			conn, err := mq.Dial(amqpURL(url), logger)
			if err != nil {
				return fmt.Errorf("events: %w", err)
			}
			defer conn.Close()

			out := g.output(cmd)
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				// Временная очередь пересоздаётся после каждого переподключения
				Setup: func(conn *mq.Connection) (string, error) {
					if err := mq.SetupTopology(conn); err != nil {
						return "", err
					}
					return mq.DeclareTailQueue(conn, pattern)
				},
				Handler: func(_ context.Context, msg *mq.Message) error {
					printEvent(out, msg)
					return nil
				},
			})

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&url, "amqp-url", "", "RabbitMQ URL (default $RABBITMQ_URL)")

	return cmd
}

func printEvent(out *Output, msg *mq.Message) {
	if out.JSONMode() {
		out.JSON(msg)
		return
	}

	ts := msg.Timestamp.Local().Format(time.TimeOnly)
	switch msg.Type {
	case mq.MessageTypeTaskChanged:
		p, err := mq.ParsePayload[mq.TaskPayload](msg)
		if err != nil {
			out.Line("%s %s <malformed: %v>", ts, msg.Type, err)
			return
		}
		line := fmt.Sprintf("%s %-14s %s", ts, p.Status, p.StepID)
		if p.Error != "" {
			line += ": " + p.Error
		}
		out.Line("%s", line)

	default:
		p, err := mq.ParsePayload[mq.RunPayload](msg)
		if err != nil {
			out.Line("%s %s <malformed: %v>", ts, msg.Type, err)
			return
		}
		line := fmt.Sprintf("%s %-14s %s %s", ts, msg.Type, p.Workflow, p.RunID)
		if p.Status != "" {
			line += " " + p.Status
		}
		if p.Error != "" {
			line += ": " + p.Error
		}
		out.Line("%s", line)
	}
}
