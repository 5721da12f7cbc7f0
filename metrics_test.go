package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMaildMetrics(t *testing.T) {
	metrics := NewMaildMetrics("")
	assert.NotNil(t, metrics.Server.Commands)
	assert.NotNil(t, metrics.Server.Logins)
	assert.NotNil(t, metrics.Server.Logouts)

	metrics = NewMaildMetrics(":9099")
	assert.NotNil(t, metrics.Server.Commands)
}
