package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

var consumeCmd = &cobra.Command{
	Use:   "consume <topic>",
	Short: "Print messages from a topic",
	Long: `consume reads every partition of a topic from --from until --to. Both
take beginning, end or an epoch millisecond timestamp. Without --to, consume
follows the topic until interrupted or --max messages were printed.`,
	Args: cobra.ExactArgs(1),
	RunE: consume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)

	consumeCmd.Flags().String("from", "beginning", "Start position: [beginning, end, <epoch ms>]")
	consumeCmd.Flags().String("to", "", "End position: [end, <epoch ms>] (unset follows the topic)")
	consumeCmd.Flags().Int("max", 0, "Stop after this many messages (0 is unlimited)")
}

func consume(cmd *cobra.Command, args []string) error {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	maxMessages, _ := cmd.Flags().GetInt("max")

	from, err := parseFetchOffset(fromStr)
	if err != nil {
		return err
	}

	var to *kafkaadmin.FetchOffset
	if toStr != "" {
		end, err := parseFetchOffset(toStr)
		if err != nil {
			return err
		}
		to = &end
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	startCtx, cancel := s.context()
	handle, err := s.admin.ConsumeBetweenOffsets(startCtx, args[0], from, to)
	cancel()
	if err != nil {
		return err
	}

	s.logger.Info("consuming", "id", handle.ID, "start_offsets", handle.StartOffsets)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var n int
	for {
		select {
		case m, ok := <-handle.Messages:
			if !ok {
				// Every partition reached its end offset.
				fmt.Fprintf(s.out, "%d message(s)\n", n)
				return nil
			}

			fmt.Fprintln(s.out, messageLine(m))

			if n++; maxMessages > 0 && n >= maxMessages {
				return stopConsumer(s, handle.ID, n)
			}
		case <-ctx.Done():
			return stopConsumer(s, handle.ID, n)
		}
	}
}

func stopConsumer(s *session, id string, n int) error {
	ctx, cancel := s.context()
	defer cancel()

	// The consumer may have reached its end offsets in the meantime.
	var notRunning kafkaadmin.ErrNoSuchConsumer
	if err := s.admin.StopConsumer(ctx, id); err != nil && !errors.As(err, &notRunning) {
		return err
	}

	fmt.Fprintf(s.out, "%d message(s)\n", n)

	return nil
}
