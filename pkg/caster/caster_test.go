package caster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type command struct {
	Action string `json:"action"`
	Season int    `json:"season,omitempty"`
}

func TestJSONCasterFrom(t *testing.T) {
	c := JSONCaster[command]{Strict: true}

	cmd, err := c.From([]byte(`{"action":"select","season":2021}`))
	require.NoError(t, err)
	assert.Equal(t, command{Action: "select", Season: 2021}, cmd)
}

func TestJSONCasterStrict(t *testing.T) {
	_, err := JSONCaster[command]{Strict: true}.From([]byte(`{"action":"select","year":2021}`))
	assert.Error(t, err)

	cmd, err := JSONCaster[command]{}.From([]byte(`{"action":"refresh","year":2021}`))
	require.NoError(t, err)
	assert.Equal(t, "refresh", cmd.Action)
}

func TestJSONCasterRejectsGarbage(t *testing.T) {
	c := JSONCaster[command]{}

	_, err := c.From([]byte(`{"action":`))
	assert.Error(t, err)

	_, err = c.From([]byte(`{"action":"refresh"} {"action":"refresh"}`))
	assert.ErrorContains(t, err, "trailing data")
}

func TestJSONCasterTo(t *testing.T) {
	data, err := JSONCaster[command]{}.To(command{Action: "refresh"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"refresh"}`, string(data))
}
