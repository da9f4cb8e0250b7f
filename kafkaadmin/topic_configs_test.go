package kafkaadmin

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicConfigDefs(t *testing.T) {
	defs := TopicConfigDefs()
	require.Len(t, defs, len(topicConfigDefs))

	assert.True(t, sort.SliceIsSorted(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	}))

	for _, d := range defs {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotEmpty(t, d.Type, d.Name)
	}

	d, ok := LookupTopicConfig("cleanup.policy")
	require.True(t, ok)
	assert.Equal(t, "delete", d.Default)

	_, ok = LookupTopicConfig("no.such.config")
	assert.False(t, ok)
}

func TestTopicConfigDefValidate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"cleanup.policy", "compact", true},
		{"cleanup.policy", "delete,compact", true},
		{"cleanup.policy", "compact, delete", true},
		{"cleanup.policy", "archive", false},
		{"cleanup.policy", "delete,archive", false},
		{"compression.type", "zstd", true},
		{"compression.type", "brotli", false},
		{"retention.ms", "-1", true},
		{"retention.ms", "7d", false},
		{"max.message.bytes", "2000000", true},
		{"max.message.bytes", "99999999999", false},
		{"min.cleanable.dirty.ratio", "0.25", true},
		{"min.cleanable.dirty.ratio", "half", false},
		{"preallocate", "true", true},
		{"preallocate", "yes", false},
		{"leader.replication.throttled.replicas", "0:1001,1:1002", true},
	}

	for _, tt := range tests {
		d, ok := LookupTopicConfig(tt.name)
		require.True(t, ok, tt.name)

		err := d.Validate(tt.value)
		if tt.valid {
			assert.Nil(t, err, "%s=%s", tt.name, tt.value)
		} else {
			assert.NotNil(t, err, "%s=%s", tt.name, tt.value)
		}
	}
}

func TestValidateTopicConfigs(t *testing.T) {
	assert.Nil(t, ValidateTopicConfigs(nil))
	assert.Nil(t, ValidateTopicConfigs(map[string]string{
		"cleanup.policy": "compact",
		"retention.ms":   "172800000",
	}))

	err := ValidateTopicConfigs(map[string]string{
		"cleanup.policy": "archive",
		"no.such.config": "1",
		"retention.ms":   "1000",
	})
	require.NotNil(t, err)
	assert.True(t, Rejected(err))
	assert.False(t, Retryable(err))
	assert.Equal(t,
		`validate topic configs: rejected: cleanup.policy: "archive" is not one of [delete, compact]; unknown topic config no.such.config`,
		err.Error(),
	)
}
