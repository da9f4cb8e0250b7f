package commands

import (
	"github.com/spf13/cobra"
)

var brokersCmd = &cobra.Command{
	Use:   "brokers",
	Short: "List the brokers in the cluster",
	Args:  cobra.NoArgs,
	RunE:  brokers,
}

func init() {
	rootCmd.AddCommand(brokersCmd)
}

func brokers(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	if _, err := s.metadata(ctx); err != nil {
		return err
	}

	registry := s.cache.Brokers()
	writeColumns(s.out, brokerLines(registry.List(), registry, s.cache.OriginatingBrokerID()))

	return nil
}
