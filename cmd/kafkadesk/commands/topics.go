package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics [query]",
	Short: "List topics, fuzzy matched against an optional query",
	Long: `topics lists all topics in the cluster. If a query is provided, topics are
fuzzy matched against it and listed best match first. With --watch, the list is
reprinted whenever the cached metadata is reloaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: topics,
}

var describeCmd = &cobra.Command{
	Use:   "describe <topic>",
	Short: "Describe the partitions of a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  describe,
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(describeCmd)

	topicsCmd.Flags().Bool("under-replicated", false, "Only list topics with under-replicated partitions")
	topicsCmd.Flags().Duration("watch", 0, "Poll interval; the list is reprinted when metadata is reloaded (0 disables)")
}

func topics(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var query string
	if len(args) > 0 {
		query = args[0]
	}

	underOnly, _ := cmd.Flags().GetBool("under-replicated")
	watch, _ := cmd.Flags().GetDuration("watch")

	if err := printTopics(s, query, underOnly); err != nil {
		return err
	}

	if watch <= 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(watch)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := printTopics(s, query, underOnly); err != nil {
			// Keep watching; the previous snapshot remains valid.
			s.logger.Warn("metadata refresh failed", "error", err)
		}
	}
}

// printTopics prints the topics matching query, reloading metadata first
// if the cache is stale. Unchanged snapshots print nothing after the first
// call.
func printTopics(s *session, query string, underOnly bool) error {
	ctx, cancel := s.context()
	defer cancel()

	before := s.cache.Topics().Version()
	first := s.cache.LastLoad().IsZero()

	md, err := s.metadata(ctx)
	if err != nil {
		return err
	}

	if !first && s.cache.Topics().Version() == before {
		return nil
	}

	matched := s.cache.Topics().Search(query)

	if underOnly {
		under := map[string]struct{}{}
		for _, t := range md.UnderReplicated() {
			under[t.Name] = struct{}{}
		}

		filtered := matched[:0]
		for _, t := range matched {
			if _, ok := under[t.Name]; ok {
				filtered = append(filtered, t)
			}
		}
		matched = filtered
	}

	if len(matched) == 0 {
		if s.cache.Topics().IsEmpty() {
			fmt.Fprintln(s.out, "No topics in cluster")
		} else {
			fmt.Fprintln(s.out, "No matching topics")
		}
		return nil
	}

	writeColumns(s.out, topicLines(matched))

	return nil
}

func describe(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.context()
	defer cancel()

	md, err := s.metadata(ctx)
	if err != nil {
		return err
	}

	name := args[0]
	if !s.cache.Topics().Exists(name) {
		return fmt.Errorf("topic %s does not exist", name)
	}

	for _, t := range md.Topics {
		if t.Name != name {
			continue
		}

		fmt.Fprintf(s.out, "Topic: %s\n", t.Name)
		writeColumns(s.out, partitionLines(t, s.cache.Brokers()))
	}

	return nil
}
