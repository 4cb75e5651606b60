package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "curly brace substitution",
			input: "api_key: ${API_KEY}",
			env:   map[string]string{"API_KEY": "secret123"},
			want:  "api_key: secret123",
		},
		{
			name:  "bare dollar substitution",
			input: "token: $SLACK_BOT_TOKEN",
			env:   map[string]string{"SLACK_BOT_TOKEN": "xoxb-1"},
			want:  "token: xoxb-1",
		},
		{
			name:  "multiple substitutions in one line",
			input: "url: ${PROTOCOL}://${HOST}:${PORT}",
			env: map[string]string{
				"PROTOCOL": "https",
				"HOST":     "example.com",
				"PORT":     "443",
			},
			want: "url: https://example.com:443",
		},
		{
			name:  "missing variable expands to empty string",
			input: "endpoint: ${MISSING_VAR}",
			env:   map[string]string{},
			want:  "endpoint: ",
		},
		{
			name:  "no variables is a no-op",
			input: "worker_count: 4",
			env:   map[string]string{},
			want:  "worker_count: 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExpandEnv_TreatsDollarDigitAsVariable(t *testing.T) {
	os.Unsetenv("UNDEFINED_TOTALLY")
	got := ExpandEnv([]byte("price: $5.00"))
	// os.ExpandEnv treats "5" as a (missing) variable name; this documents
	// that behavior rather than papering over it with custom parsing.
	assert.Equal(t, "price: .00", string(got))
}
