package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jamiealquiza/envy"
	"github.com/spf13/cobra"

	"github.com/kafkadesk/kafkadesk/clustercache"
)

var rootCmd = &cobra.Command{
	Use:   "kafkadesk",
	Short: "Browse and administer Kafka clusters",
	Long: `kafkadesk inspects and administers a Kafka cluster: topics, brokers,
topic configs, consumer groups and messages. Cluster metadata is cached and
reloaded once it is older than --ttl.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("cluster", "default", "Cluster name")
	rootCmd.PersistentFlags().String("bootstrap-servers", "localhost:9092", "Kafka bootstrap servers (comma delim. list)")
	rootCmd.PersistentFlags().String("zk-addr", "", "ZooKeeper connect string; if set, topic metadata and configs are managed through ZooKeeper")
	rootCmd.PersistentFlags().String("zk-prefix", "", "ZooKeeper namespace prefix (for Kafka brokers)")
	rootCmd.PersistentFlags().String("security-protocol", "", "Kafka security protocol: [PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL]")
	rootCmd.PersistentFlags().String("ssl-ca-location", "", "Path to the CA certificate used for SSL")
	rootCmd.PersistentFlags().String("sasl-mechanism", "", "SASL mechanism: [PLAIN, SCRAM-SHA-256, SCRAM-SHA-512]")
	rootCmd.PersistentFlags().String("sasl-username", "", "SASL username")
	rootCmd.PersistentFlags().String("sasl-password", "", "SASL password")
	rootCmd.PersistentFlags().Duration("ttl", clustercache.DefaultTTL, "Cluster metadata cache TTL")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().Bool("stub", false, "Use an in-memory demo cluster")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: [trace, debug, info, warn, error]")

	envy.ParseCobra(rootCmd, envy.CobraConfig{Prefix: "KAFKADESK", Persistent: true})
}
