package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"business-wallet-engine/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func TestRun_MintsValidToken(t *testing.T) {
	t.Setenv("WLE_JWT_SECRET", "cli-test-secret")
	id := uuid.New()

	var out bytes.Buffer
	require.NoError(t, run([]string{"--admin-id", id.String(), "--role", "service", "--expiry", "5m"}, &out))
	assert.Contains(t, out.String(), id.String())

	claims, err := service.NewJWTTokenService("cli-test-secret", time.Hour, "business-wallet-engine").Validate(lastLine(out.String()))
	require.NoError(t, err)
	assert.Equal(t, id, claims.AdminID)
	assert.Equal(t, "service", claims.Role)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		args   []string
	}{
		{name: "missing secret", secret: "", args: nil},
		{name: "bad admin id", secret: "s", args: []string{"--admin-id", "nope"}},
		{name: "unknown role", secret: "s", args: []string{"--role", "root"}},
		{name: "unknown flag", secret: "s", args: []string{"--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WLE_JWT_SECRET", tt.secret)
			assert.Error(t, run(tt.args, &bytes.Buffer{}))
		})
	}
}
