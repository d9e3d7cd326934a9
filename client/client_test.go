package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name:   "nil config",
			config: nil,
		},
		{
			name:   "empty endpoint",
			config: &Config{Endpoint: ""},
		},
		{
			name: "invalid endpoint",
			config: &Config{
				Endpoint: "invalid://endpoint",
				Timeout:  5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}
