package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashMessageData_Deterministic(t *testing.T) {
	d := MessageData{Key: Key("k1"), Payload: "payload"}
	assert.Equal(t, HashMessageData(d), HashMessageData(d))
}

func TestHashMessageData_Distinguishes(t *testing.T) {
	tests := []struct {
		name string
		a, b MessageData
	}{
		{"payload differs", MessageData{Payload: "a"}, MessageData{Payload: "b"}},
		{"key differs", MessageData{Key: Key("k1"), Payload: "a"}, MessageData{Key: Key("k2"), Payload: "a"}},
		{"missing vs empty key", MessageData{Payload: "a"}, MessageData{Key: Key(""), Payload: "a"}},
		{"key/payload boundary", MessageData{Key: Key("ab"), Payload: "c"}, MessageData{Key: Key("a"), Payload: "bc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, HashMessageData(tt.a), HashMessageData(tt.b))
		})
	}
}

func TestHashMessageData_IgnoresKeyPointerIdentity(t *testing.T) {
	a := MessageData{Key: Key("same"), Payload: "x"}
	b := MessageData{Key: Key("same"), Payload: "x"}
	assert.Equal(t, HashMessageData(a), HashMessageData(b))
}
