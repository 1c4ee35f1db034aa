package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_ReportsErrors(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "invalid config",
			env:      map[string]string{"LOG_LEVEL": "verbose"},
			args:     []string{"sources"},
			wantCode: 1,
			wantErr:  "Error: invalid config",
		},
		{
			name:     "unknown store backend",
			env:      map[string]string{"STORE_BACKEND": "cassandra"},
			args:     []string{"sources"},
			wantCode: 1,
			wantErr:  "StoreBackend",
		},
		{
			name:     "unknown command",
			args:     []string{"unload"},
			wantCode: 1,
			wantErr:  `Error: unknown command "unload"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var stderr bytes.Buffer
			code := run(tt.args, &stderr)

			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}
