package redis

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"business-wallet-engine/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: s.Host(), Port: port}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	s.Close()

	var logs bytes.Buffer
	_, err = NewClient(context.Background(),
		config.RedisConfig{Host: "127.0.0.1", Port: port, Timeout: 200 * time.Millisecond}, zerolog.New(&logs))
	assert.Error(t, err)
	assert.Contains(t, logs.String(), "redis ping failed")
}

func TestHealthCheck(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr(), MaxRetries: -1})
	var logs bytes.Buffer
	hc := NewHealthCheck(client, zerolog.New(&logs))

	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Empty(t, logs.String())

	s.Close()
	assert.ErrorContains(t, hc.Ping(context.Background()), "redis cache")
	assert.Contains(t, logs.String(), "redis health check failed")
}
