package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// parseConfigPairs takes a list of key=value strings and returns them as a
// map. Values may contain '='.
func parseConfigPairs(pairs []string) (map[string]string, error) {
	configs := make(map[string]string, len(pairs))

	for _, kv := range pairs {
		i := strings.Index(kv, "=")
		if i < 1 {
			return nil, fmt.Errorf("config %q must be in the form key=value", kv)
		}
		configs[kv[:i]] = kv[i+1:]
	}

	return configs, nil
}

// parseFetchOffset parses "beginning", "end" or an epoch millisecond
// timestamp.
func parseFetchOffset(s string) (kafkaadmin.FetchOffset, error) {
	switch strings.ToLower(s) {
	case "beginning", "earliest":
		return kafkaadmin.FetchOffset{Type: kafkaadmin.FetchBeginning}, nil
	case "end", "latest":
		return kafkaadmin.FetchOffset{Type: kafkaadmin.FetchEnd}, nil
	}

	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts < 0 {
		return kafkaadmin.FetchOffset{}, fmt.Errorf("invalid offset %q: expected beginning, end or an epoch millisecond timestamp", s)
	}

	return kafkaadmin.FetchOffset{Type: kafkaadmin.FetchTimestamp, Timestamp: ts}, nil
}

// parseGroupOffset parses "beginning", "end", "tail:<n>" or "offset:<n>".
func parseGroupOffset(s string) (kafkaadmin.GroupOffset, error) {
	switch strings.ToLower(s) {
	case "beginning", "earliest":
		return kafkaadmin.GroupOffset{Type: kafkaadmin.GroupOffsetBeginning}, nil
	case "end", "latest":
		return kafkaadmin.GroupOffset{Type: kafkaadmin.GroupOffsetEnd}, nil
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return kafkaadmin.GroupOffset{}, fmt.Errorf("invalid initial offset %q", s)
	}

	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n < 0 {
		return kafkaadmin.GroupOffset{}, fmt.Errorf("invalid initial offset %q: %q is not a positive number", s, parts[1])
	}

	switch strings.ToLower(parts[0]) {
	case "tail":
		return kafkaadmin.GroupOffset{Type: kafkaadmin.GroupOffsetTail, Value: n}, nil
	case "offset":
		return kafkaadmin.GroupOffset{Type: kafkaadmin.GroupOffsetAt, Value: n}, nil
	}

	return kafkaadmin.GroupOffset{}, fmt.Errorf("invalid initial offset %q", s)
}
