package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/clusterclient/internal/client"
)

// Viper keys for the connection settings. Flag names are derived from
// these by replacing dots with hyphens; environment variables use the
// CLUSTERCLIENT_ prefix with underscores.
const (
	keyHost               = "host"
	keyToken              = "token"
	keyUsername           = "username"
	keyPassword           = "password"
	keyCAFile             = "ca-file"
	keyClientCertFile     = "client-cert-file"
	keyClientKeyFile      = "client-key-file"
	keyInsecureSkipVerify = "insecure-skip-tls-verify"
	keyQPS                = "qps"
	keyBurst              = "burst"
	keyTimeout            = "timeout"
)

const envPrefix = "CLUSTERCLIENT"

// registerConnectionFlags adds the shared connection flags to a command.
// Every subcommand that talks to the API server carries the same set.
func registerConnectionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String(keyHost, "", "Base URL of the cluster API server (required)")
	flags.String(keyToken, "", "Bearer token; takes precedence over username/password")
	flags.String(keyUsername, "", "Username for basic authentication")
	flags.String(keyPassword, "", "Password for basic authentication")
	flags.String(keyCAFile, "", "Path to a PEM-encoded CA bundle for server trust")
	flags.String(keyClientCertFile, "", "Path to a PEM-encoded client certificate for mutual TLS")
	flags.String(keyClientKeyFile, "", "Path to the client certificate's PEM-encoded private key")
	flags.Bool(keyInsecureSkipVerify, false, "Skip all server certificate verification (not recommended)")
	flags.Float32(keyQPS, client.DefaultQPS, "Client-side request rate limit; negative disables throttling")
	flags.Int(keyBurst, client.DefaultBurst, "Client-side request burst allowance")
	flags.Duration(keyTimeout, client.DefaultTimeout, "Per-request timeout for non-watch calls")
	flags.String("config", "", "Path to a YAML config file with connection settings")
}

// loadClientConfig resolves the connection configuration for a command.
// Resolution order (highest wins): CLI flags, CLUSTERCLIENT_* environment
// variables, config file, compiled defaults. Trust and client-certificate
// material is read from disk here so the client only ever sees in-memory
// bytes.
func loadClientConfig(cmd *cobra.Command) (*client.Config, error) {
	v := viper.New()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/clusterclient/")
		if err := v.ReadInConfig(); err != nil {
			var notFoundErr viper.ConfigFileNotFoundError
			if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &client.Config{
		Host:                  v.GetString(keyHost),
		Token:                 v.GetString(keyToken),
		Username:              v.GetString(keyUsername),
		Password:              v.GetString(keyPassword),
		InsecureSkipTLSVerify: v.GetBool(keyInsecureSkipVerify),
		QPS:                   float32(v.GetFloat64(keyQPS)),
		Burst:                 v.GetInt(keyBurst),
		Timeout:               v.GetDuration(keyTimeout),
	}

	var err error
	if cfg.CABundle, err = readOptionalFile(v.GetString(keyCAFile)); err != nil {
		return nil, fmt.Errorf("reading CA bundle: %w", err)
	}
	if cfg.ClientCert, err = readOptionalFile(v.GetString(keyClientCertFile)); err != nil {
		return nil, fmt.Errorf("reading client certificate: %w", err)
	}
	if cfg.ClientKey, err = readOptionalFile(v.GetString(keyClientKeyFile)); err != nil {
		return nil, fmt.Errorf("reading client key: %w", err)
	}

	return cfg, nil
}

func readOptionalFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
