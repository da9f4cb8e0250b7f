package kafkaadmin

import (
	"fmt"
	"sort"
	"strings"
)

const defaultBootstrapServer = "localhost:9092"

// ClusterConfig describes how to reach a cluster.
type ClusterConfig struct {
	Name             string
	BootstrapServers []string
}

// BootstrapString returns the comma delimited bootstrap servers list expected
// by librdkafka.
func (c ClusterConfig) BootstrapString() string {
	return strings.Join(c.BootstrapServers, ",")
}

// ClusterConfigs is a set of named ClusterConfig with one default.
type ClusterConfigs struct {
	clusters       map[string]ClusterConfig
	defaultCluster string
}

// NewClusterConfigs returns a ClusterConfigs holding the provided clusters.
// The first cluster becomes the default.
func NewClusterConfigs(clusters ...ClusterConfig) *ClusterConfigs {
	cc := &ClusterConfigs{clusters: map[string]ClusterConfig{}}

	for _, c := range clusters {
		cc.Add(c)
	}

	return cc
}

// Add registers a cluster. Registering the first cluster makes it the default.
func (cc *ClusterConfigs) Add(c ClusterConfig) {
	if len(cc.clusters) == 0 {
		cc.defaultCluster = c.Name
	}
	cc.clusters[c.Name] = c
}

// SetDefault selects the default cluster by name.
func (cc *ClusterConfigs) SetDefault(name string) (ClusterConfig, error) {
	c, exists := cc.clusters[name]
	if !exists {
		return ClusterConfig{}, fmt.Errorf("cluster key '%s' does not exist in the config", name)
	}

	cc.defaultCluster = name

	return c, nil
}

// Default returns the default cluster, or a localhost cluster if none is
// configured.
func (cc *ClusterConfigs) Default() ClusterConfig {
	if c, exists := cc.clusters[cc.defaultCluster]; exists {
		return c
	}

	return ClusterConfig{
		Name:             "default",
		BootstrapServers: []string{defaultBootstrapServer},
	}
}

// Names returns all registered cluster names sorted.
func (cc *ClusterConfigs) Names() []string {
	var names []string
	for n := range cc.clusters {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
