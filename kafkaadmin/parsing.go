package kafkaadmin

import (
	"fmt"
	"regexp"
)

const maxTopicNameLength = 249

var (
	// Accepted characters in Kafka topic names.
	topicNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
)

// ValidateTopicName returns an error if name isn't a legal Kafka topic name.
func ValidateTopicName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("topic name must be specified")
	case name == "." || name == "..":
		return fmt.Errorf("topic name cannot be %q", name)
	case len(name) > maxTopicNameLength:
		return fmt.Errorf("topic name exceeds %d characters", maxTopicNameLength)
	case !topicNameRegex.MatchString(name):
		return fmt.Errorf("topic name %q contains characters other than ASCII alphanumerics, '.', '_' and '-'", name)
	}

	return nil
}
