package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/kafka"
)

func evaluateCmd() *cobra.Command {
	var (
		file    string
		dryRun  bool
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one order event",
		Long: `Evaluate an order event read from --file or stdin.

By default the event runs through the same path as the consumer: the order is stored, the flag
is applied and alerts are published. --dry-run only scores the order against the stored window.
--publish sends the event to KAFKA_ORDERS_TOPIC instead of evaluating it here.

Examples:
  clover evaluate --file order.json
  cat order.json | clover evaluate --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun && publish {
				return fmt.Errorf("--dry-run and --publish are mutually exclusive")
			}

			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			event, err := kafka.ParseOrderEvent(data)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if publish {
				producer := kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      a.cfg.Brokers(),
					Topic:        a.cfg.KafkaOrdersTopic,
					RequiredAcks: a.cfg.KafkaRequiredAcks,
					Compression:  a.cfg.KafkaCompression,
				}, a.logger)
				defer producer.Close()
				if err := producer.PublishOrderEvent(ctx, *event); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %s/%s to %s\n", event.ShopID, event.Order.ID, a.cfg.KafkaOrdersTopic)
				return nil
			}

			if err := a.connectAll(ctx, !dryRun); err != nil {
				return err
			}

			var result any
			if dryRun {
				result, err = a.processor.Preview(ctx, event.Order)
			} else {
				result, err = a.processor.ProcessOrder(ctx, *event)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "order event JSON file (default: stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "score without persisting or alerting")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the event to the orders topic")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
