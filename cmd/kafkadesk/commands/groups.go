package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List consumer groups",
	Args:  cobra.NoArgs,
	RunE:  groups,
}

var groupOffsetsCmd = &cobra.Command{
	Use:   "group-offsets <group>",
	Short: "Show the committed offsets and lag of a consumer group",
	Args:  cobra.ExactArgs(1),
	RunE:  groupOffsets,
}

var createGroupOffsetsCmd = &cobra.Command{
	Use:   "create-group-offsets <group>",
	Short: "Commit offsets for a consumer group, creating it if needed",
	Long: `create-group-offsets commits an offset for every partition of the
provided topics. --initial is one of: beginning, end, tail:<n> (n messages
before the end) or offset:<n>.`,
	Args: cobra.ExactArgs(1),
	RunE: createGroupOffsets,
}

var deleteGroupCmd = &cobra.Command{
	Use:   "delete-group <group>",
	Short: "Delete an empty consumer group",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteGroup,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(groupOffsetsCmd)
	rootCmd.AddCommand(createGroupOffsetsCmd)
	rootCmd.AddCommand(deleteGroupCmd)

	createGroupOffsetsCmd.Flags().String("topics", "", "Topics (comma delim. list)")
	createGroupOffsetsCmd.Flags().String("initial", "end", "Initial offset: [beginning, end, tail:<n>, offset:<n>]")

	// Required.
	createGroupOffsetsCmd.MarkFlagRequired("topics")
}

func groups(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	groups, err := s.admin.ListConsumerGroups(ctx)
	if err != nil {
		// Partial listings are still printed.
		if len(groups) == 0 {
			return err
		}
		s.logger.Warn("incomplete consumer group listing", "error", err)
	}

	if len(groups) == 0 {
		fmt.Fprintln(s.out, "No consumer groups")
		return nil
	}

	writeColumns(s.out, groupLines(groups))

	return nil
}

func groupOffsets(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	offsets, err := s.admin.GetGroupOffsets(ctx, args[0])
	if err != nil {
		return err
	}

	if len(offsets) == 0 {
		fmt.Fprintf(s.out, "No committed offsets for group %s\n", args[0])
		return nil
	}

	writeColumns(s.out, groupOffsetLines(offsets))

	return nil
}

func createGroupOffsets(cmd *cobra.Command, args []string) error {
	topicList, _ := cmd.Flags().GetString("topics")
	initialStr, _ := cmd.Flags().GetString("initial")

	initial, err := parseGroupOffset(initialStr)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	topics := splitList(topicList)
	if err := s.admin.CreateGroupOffsets(ctx, args[0], topics, initial); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Committed %s offsets for group %s on %d topic(s)\n", initial, args[0], len(topics))

	return nil
}

func deleteGroup(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	name, err := s.admin.DeleteConsumerGroup(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Deleted consumer group %s\n", name)

	return nil
}
