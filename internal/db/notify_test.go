package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomPayload(t *testing.T) {
	code, version, ok := parseRoomPayload(roomPayload("QX7KPD", 42))
	assert.True(t, ok)
	assert.Equal(t, "QX7KPD", code)
	assert.Equal(t, int64(42), version)
}

func TestParseRoomPayloadRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "QX7KPD", ":4", "QX7KPD:", "QX7KPD:x", "QX7KPD:-1"} {
		_, _, ok := parseRoomPayload(payload)
		assert.False(t, ok, payload)
	}
}
