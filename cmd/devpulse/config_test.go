package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url with password", "postgres://devpulse:s3cret@db:5432/devpulse?sslmode=disable", "postgres://devpulse:xxxxx@db:5432/devpulse?sslmode=disable"},
		{"url without user", "postgres://db:5432/devpulse", "postgres://db:5432/devpulse"},
		{"key value dsn", "host=db user=devpulse", "host=db user=devpulse"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactDSN(tt.dsn))
		})
	}
}
