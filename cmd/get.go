package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/clusterclient/internal/client"
	"github.com/giantswarm/clusterclient/internal/instrumentation"
)

// newGetCmd creates the Cobra command for a single request/response call.
func newGetCmd() *cobra.Command {
	var (
		method string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Issue a single request against the cluster API",
		Long: `Issue one request against the cluster API server and print the
response body to stdout. The path is resolved against the configured
host, for example:

	clusterclient get /api/v1/namespaces/default/pods --host https://api.example.com --ca-file ca.pem`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}

			query, err := parseParams(params)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
			if err != nil {
				return fmt.Errorf("setting up instrumentation: %w", err)
			}
			defer func() { _ = provider.Shutdown(ctx) }()

			c, err := client.New(cfg,
				client.WithMetrics(provider.Metrics()),
				client.WithTracer(provider.Tracer()),
			)
			if err != nil {
				return err
			}

			resp, err := c.Do(ctx, &client.Request{
				Method: method,
				Path:   args[0],
				Query:  query,
			})
			if err != nil {
				return err
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
			return err
		},
	}

	registerConnectionFlags(cmd)
	cmd.Flags().StringVar(&method, "method", http.MethodGet, "HTTP method for the request")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Query parameter as key=value; repeatable")

	return cmd
}

// parseParams converts repeated key=value arguments into query values.
func parseParams(params []string) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, p := range params {
		key, value, found := strings.Cut(p, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed query parameter %q, expected key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}
