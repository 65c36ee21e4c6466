package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperviseLocal(t *testing.T) {
	tests := []struct {
		name    string
		runErr  error
		wantErr string
	}{
		{"clean stop", nil, ""},
		{"failure", errors.New("scheduler failed"), "local session: scheduler failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got error
			superviseLocal(context.Background(), func(context.Context) error {
				return tt.runErr
			}, func(err error) { got = err })

			if tt.wantErr == "" {
				assert.NoError(t, got)
				return
			}
			require.Error(t, got)
			assert.Equal(t, tt.wantErr, got.Error())
		})
	}
}
