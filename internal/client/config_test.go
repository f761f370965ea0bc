package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	pem := []byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n")

	tests := []struct {
		name      string
		cfg       *Config
		wantField string
	}{
		{
			name:      "nil configuration",
			cfg:       nil,
			wantField: "config",
		},
		{
			name:      "blank host",
			cfg:       &Config{Host: ""},
			wantField: "host",
		},
		{
			name:      "whitespace host",
			cfg:       &Config{Host: "   "},
			wantField: "host",
		},
		{
			name:      "malformed host",
			cfg:       &Config{Host: "https://exa mple.com"},
			wantField: "host",
		},
		{
			name:      "relative host",
			cfg:       &Config{Host: "/just/a/path"},
			wantField: "host",
		},
		{
			name:      "https without trust material",
			cfg:       &Config{Host: "https://api.example.com"},
			wantField: "ca_bundle",
		},
		{
			name: "client cert without key",
			cfg: &Config{
				Host:       "https://api.example.com",
				CABundle:   pem,
				ClientCert: pem,
			},
			wantField: "client_cert",
		},
		{
			name: "client key without cert",
			cfg: &Config{
				Host:      "https://api.example.com",
				CABundle:  pem,
				ClientKey: pem,
			},
			wantField: "client_cert",
		},
		{
			name: "https with bundle",
			cfg:  &Config{Host: "https://api.example.com", CABundle: pem},
		},
		{
			name: "https with skip verify",
			cfg:  &Config{Host: "https://api.example.com", InsecureSkipTLSVerify: true},
		},
		{
			name: "plain http needs no trust material",
			cfg:  &Config{Host: "http://localhost:8080"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			baseURL, err := tc.cfg.Validate()
			if tc.wantField == "" {
				require.NoError(t, err)
				require.NotNil(t, baseURL)
				assert.True(t, baseURL.IsAbs())
				return
			}

			require.Error(t, err)
			assert.Nil(t, baseURL)
			assert.True(t, IsConfigurationError(err))

			var configErr *ConfigurationError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tc.wantField, configErr.Field)
		})
	}
}

func TestConfigValidateHasNoSideEffects(t *testing.T) {
	t.Parallel()

	cfg := &Config{Host: "https://api.example.com", InsecureSkipTLSVerify: true}

	_, err := cfg.Validate()
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Host)
	assert.Zero(t, cfg.QPS)
	assert.Zero(t, cfg.Timeout)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	t.Run("fills zero values", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Host: "http://localhost"}
		resolved := cfg.withDefaults()

		assert.Equal(t, DefaultQPS, resolved.QPS)
		assert.Equal(t, DefaultBurst, resolved.Burst)
		assert.Equal(t, DefaultTimeout, resolved.Timeout)
		assert.Zero(t, cfg.QPS, "original config must not be mutated")
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Host: "http://localhost", QPS: 5, Burst: 10, Timeout: time.Second}
		resolved := cfg.withDefaults()

		assert.Equal(t, float32(5), resolved.QPS)
		assert.Equal(t, 10, resolved.Burst)
		assert.Equal(t, time.Second, resolved.Timeout)
	})

	t.Run("negative QPS disables throttling", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Host: "http://localhost", QPS: -1}
		resolved := cfg.withDefaults()

		assert.Equal(t, float32(-1), resolved.QPS)
	})
}
