package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/common"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/whereabouts/whereabouts.db", cfg.Database.Path)
	assert.Equal(t, "whereabouts", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, StoreMemory, cfg.Location.Store)
	assert.Equal(t, 30*time.Second, cfg.Location.CacheTTL)
	assert.Equal(t, RecencyCurrent, cfg.Usage.RecencyPolicy)
	assert.True(t, cfg.Permissions.FineLocation)
	assert.Equal(t, 1, cfg.Registration.RetryAttempts)
	assert.False(t, cfg.HTTP.TLS)
	assert.Equal(t, "/home/tester/.config/whereabouts/certs", cfg.HTTP.CertDir)
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("database.path", "/tmp/w.db")
	v.Set("mqtt.topic_prefix", "home/phone/")
	v.Set("location.store", "REDIS")
	v.Set("usage.recency_policy", "previous")
	v.Set("http.tls", true)
	v.Set("http.tls_hosts", []string{"bridge.lan", "192.168.1.20"})

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.HTTP.TLS)
	assert.Equal(t, []string{"bridge.lan", "192.168.1.20"}, cfg.HTTP.TLSHosts)
	assert.Equal(t, "home/phone", cfg.MQTT.TopicPrefix)
	assert.Equal(t, StoreRedis, cfg.Location.Store)
	assert.Equal(t, RecencyPrevious, cfg.Usage.RecencyPolicy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"bad store", "location.store", "etcd"},
		{"bad recency", "usage.recency_policy", "sometimes"},
		{"bad qos", "mqtt.qos", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set("database.path", "/tmp/w.db")
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}
