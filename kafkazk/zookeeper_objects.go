package kafkazk

import (
	"net"
	"sort"
	"strconv"
	"strings"
)

// TopicState is used for unmarshing ZooKeeper json data from a topic:
// e.g. /brokers/topics/some-topic
type TopicState struct {
	Version    int              `json:"version"`
	Partitions map[string][]int `json:"partitions"`
}

// PartitionIDs returns the partition numbers of the topic in ascending order.
// Non-numeric keys are ignored.
func (ts TopicState) PartitionIDs() []int {
	ids := make([]int, 0, len(ts.Partitions))
	for p := range ts.Partitions {
		if id, err := strconv.Atoi(p); err == nil {
			ids = append(ids, id)
		}
	}

	sort.Ints(ids)

	return ids
}

// TopicStateISR is a map of partition numbers to PartitionState.
type TopicStateISR map[string]PartitionState

// PartitionState is used for unmarshalling json data from a partition state:
// e.g. /brokers/topics/some-topic/partitions/0/state
type PartitionState struct {
	Version         int   `json:"version"`
	ControllerEpoch int   `json:"controller_epoch"`
	Leader          int   `json:"leader"`
	LeaderEpoch     int   `json:"leader_epoch"`
	ISR             []int `json:"isr"`
}

// TopicConfig is used for unmarshalling
// /config/topics/<topic> from ZooKeeper.
type TopicConfig struct {
	Version int               `json:"version"`
	Config  map[string]string `json:"config"`
}

// KafkaConfig is used to issue configuration updates to either
// topics or brokers in ZooKeeper.
type KafkaConfig struct {
	Type    string            // Topic or broker.
	Name    string            // Entity name.
	Configs map[string]string // Complete set of dynamic configs.
}

// KafkaConfigData is used for unmarshalling
// /config/<type>/<name> data from ZooKeeper.
type KafkaConfigData struct {
	Version int               `json:"version"`
	Config  map[string]string `json:"config"`
}

// NewKafkaConfigData creates a KafkaConfigData.
func NewKafkaConfigData() KafkaConfigData {
	return KafkaConfigData{
		Version: 1,
		Config:  make(map[string]string),
	}
}

// configChange is the payload of a /config/changes/config_change_ znode.
type configChange struct {
	Version    int    `json:"version"`
	EntityPath string `json:"entity_path"`
}

// controllerState is used for unmarshalling /controller.
type controllerState struct {
	Version   int    `json:"version"`
	BrokerID  int    `json:"brokerid"`
	Timestamp string `json:"timestamp"`
}

// BrokerMetaMap is a map of broker IDs to BrokerMeta.
type BrokerMetaMap map[int]*BrokerMeta

// IDs returns the broker IDs in ascending order.
func (bmm BrokerMetaMap) IDs() []int {
	ids := make([]int, 0, len(bmm))
	for id := range bmm {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}

// BrokerMeta holds the registration data found in /brokers/ids/<id>.
type BrokerMeta struct {
	ListenerSecurityProtocolMap map[string]string `json:"listener_security_protocol_map"`
	Endpoints                   []string          `json:"endpoints"`
	Rack                        string            `json:"rack"`
	JMXPort                     int               `json:"jmx_port"`
	Host                        string            `json:"host"`
	Timestamp                   string            `json:"timestamp"`
	Port                        int               `json:"port"`
	Version                     int               `json:"version"`
}

// Address returns the host and port the broker advertises. Brokers that only
// expose non-plaintext listeners register a null host; the first endpoint is
// used in that case.
func (b BrokerMeta) Address() (string, int) {
	if b.Host != "" {
		return b.Host, b.Port
	}

	for _, ep := range b.Endpoints {
		// e.g. SSL://kafka-1.example.com:9093
		i := strings.Index(ep, "://")
		if i < 0 {
			continue
		}

		host, port, err := net.SplitHostPort(ep[i+3:])
		if err != nil {
			continue
		}

		p, err := strconv.Atoi(port)
		if err != nil {
			continue
		}

		return host, p
	}

	return "", 0
}
