package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

var createTopicCmd = &cobra.Command{
	Use:   "create-topic <name>",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  createTopic,
}

var deleteTopicCmd = &cobra.Command{
	Use:   "delete-topic <name>",
	Short: "Delete a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteTopic,
}

func init() {
	rootCmd.AddCommand(createTopicCmd)
	rootCmd.AddCommand(deleteTopicCmd)

	createTopicCmd.Flags().Int("partitions", 1, "Number of partitions")
	createTopicCmd.Flags().Int("replication-factor", 1, "Replication factor")
	createTopicCmd.Flags().StringSlice("config", nil, "Topic config as key=value (repeatable)")
}

func createTopic(cmd *cobra.Command, args []string) error {
	partitions, _ := cmd.Flags().GetInt("partitions")
	rf, _ := cmd.Flags().GetInt("replication-factor")
	pairs, _ := cmd.Flags().GetStringSlice("config")

	configs, err := parseConfigPairs(pairs)
	if err != nil {
		return err
	}

	if err := kafkaadmin.ValidateTopicConfigs(configs); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	name, err := s.admin.CreateTopic(ctx, kafkaadmin.CreateTopicConfig{
		Name:              args[0],
		Partitions:        partitions,
		ReplicationFactor: rf,
		Config:            configs,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Created topic %s\n", name)

	return refreshAfterChange(s)
}

func deleteTopic(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	name, err := s.admin.DeleteTopic(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Deleted topic %s\n", name)

	return refreshAfterChange(s)
}

// refreshAfterChange reloads cluster metadata after a topic was created or
// deleted. A failed reload only warrants a warning; the change itself went
// through.
func refreshAfterChange(s *session) error {
	ctx, cancel := s.context()
	defer cancel()

	md, err := s.cache.Refresh(ctx)
	if err != nil {
		s.logger.Warn("metadata refresh failed", "error", err)
		return nil
	}

	fmt.Fprintf(s.out, "%d topics in cluster\n", len(md.Topics))

	return nil
}
