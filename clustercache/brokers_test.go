package clustercache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

func TestBrokerRegistry(t *testing.T) {
	r := NewBrokerRegistry()

	assert.Equal(t, "#1001", r.Label(1001))

	r.Update([]kafkaadmin.BrokerInfo{
		{ID: 1002, Host: "host-b", Port: 9092},
		{ID: 1001, Host: "host-a", Port: 9092},
	})

	b, ok := r.ByID(1001)
	assert.True(t, ok)
	assert.Equal(t, "host-a", b.Host)

	assert.Equal(t, "#1001 - host-a", r.Label(1001))
	assert.Equal(t, "#1003", r.Label(1003))

	list := r.List()
	assert.Equal(t, int32(1001), list[0].ID)
	assert.Equal(t, int32(1002), list[1].ID)

	// Updates replace wholesale.
	r.Update([]kafkaadmin.BrokerInfo{{ID: 1003, Host: "host-c"}})
	_, ok = r.ByID(1001)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}
