package cache

import (
	"context"
	"testing"
	"time"

	"casinoclient/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		defaultVal string
		envValue   string
		want       string
	}{
		{
			name:       "Environment variable exists",
			key:        "TEST_KEY_EXISTS",
			defaultVal: "default",
			envValue:   "custom_value",
			want:       "custom_value",
		},
		{
			name:       "Environment variable does not exist",
			key:        "TEST_KEY_NOT_EXISTS",
			defaultVal: "default_value",
			want:       "default_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultVal))
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		defaultVal int
		envValue   string
		want       int
	}{
		{"Valid integer", "TEST_INT_VALID", 0, "42", 42},
		{"Invalid integer", "TEST_INT_INVALID", 10, "not_a_number", 10},
		{"Empty value", "TEST_INT_EMPTY", 5, "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvAsInt(tt.key, tt.defaultVal))
		})
	}
}

func TestNew_NoRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "127.0.0.1:1")

	assert.Nil(t, New(), "an unreachable Redis yields no service")
}

func TestService_Interface(t *testing.T) {
	var _ Service = (*service)(nil)
	var _ session.TokenStore = (*TokenStore)(nil)
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTokenStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	store := NewTokenStore(client, "alice")
	other := NewTokenStore(client, "bob")

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "missing key reads as no token")

	require.NoError(t, store.Save(ctx, "jwt-1"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", token)
	assert.Equal(t, "jwt-1", client.Get(ctx, "casinoclient:token:alice").Val())

	token, err = other.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "profiles do not share tokens")

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}
