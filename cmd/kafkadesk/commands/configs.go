package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Show and change topic configs",
}

var configsShowCmd = &cobra.Command{
	Use:   "show <topic>",
	Short: "Show the configs of a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  configsShow,
}

var configsSetCmd = &cobra.Command{
	Use:   "set <topic> <key=value>...",
	Short: "Set config overrides on a topic",
	Long: `set applies one or more config overrides to a topic. The remaining
overrides of the topic are kept as they are. Unknown configs and invalid
values are refused before anything is sent to the cluster.`,
	Args: cobra.MinimumNArgs(2),
	RunE: configsSet,
}

var configsClearCmd = &cobra.Command{
	Use:   "clear <topic> <key>",
	Short: "Remove a config override from a topic, reverting it to the default",
	Args:  cobra.ExactArgs(2),
	RunE:  configsClear,
}

var configsDocsCmd = &cobra.Command{
	Use:   "docs [config]",
	Short: "Describe the known topic configs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  configsDocs,
}

func init() {
	rootCmd.AddCommand(configsCmd)
	configsCmd.AddCommand(configsShowCmd)
	configsCmd.AddCommand(configsSetCmd)
	configsCmd.AddCommand(configsClearCmd)
	configsCmd.AddCommand(configsDocsCmd)

	configsShowCmd.Flags().Bool("overrides", false, "Only show overridden configs")
}

func configsShow(cmd *cobra.Command, args []string) error {
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

	topic := args[0]
	if !s.cache.Topics().Exists(topic) {
		return fmt.Errorf("topic %s does not exist", topic)
	}

	store := s.cache.Configs()

	// The bulk load that follows a metadata refresh may have failed.
	if _, cached := store.Entries(topic); !cached || store.Stale(topic) {
		if err := store.LoadOne(ctx, topic); err != nil {
			return err
		}
	}

	overridesOnly, _ := cmd.Flags().GetBool("overrides")

	entries, _ := store.Entries(topic)
	if overridesOnly {
		entries = store.OverrideSet(topic)
	}

	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No configs")
		return nil
	}

	writeColumns(s.out, configLines(entries))

	return nil
}

func configsSet(cmd *cobra.Command, args []string) error {
	changes, err := parseConfigPairs(args[1:])
	if err != nil {
		return err
	}

	if err := kafkaadmin.ValidateTopicConfigs(changes); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	topic := args[0]

	if err := s.cache.Configs().ApplyOverrides(ctx, topic, changes); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Updated %d config(s) on %s\n", len(changes), topic)
	writeColumns(s.out, configLines(s.cache.Configs().OverrideSet(topic)))

	return nil
}

func configsClear(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	topic, key := args[0], args[1]

	if err := s.cache.Configs().ClearOverride(ctx, topic, key); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Cleared %s on %s\n", key, topic)

	return nil
}

func configsDocs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		writeColumns(out, configDefLines(kafkaadmin.TopicConfigDefs()))
		return nil
	}

	d, ok := kafkaadmin.LookupTopicConfig(args[0])
	if !ok {
		return fmt.Errorf("unknown topic config %s", args[0])
	}

	fmt.Fprintf(out, "%s (%s)\n", d.Name, d.Type)
	fmt.Fprintf(out, "  %s\n", d.Description)
	fmt.Fprintf(out, "  Valid values: %s\n", validValues(d))
	fmt.Fprintf(out, "  Default: %s\n", orNone(d.Default))

	return nil
}
