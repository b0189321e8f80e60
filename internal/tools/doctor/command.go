package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/casimir/freon/internal/tools/common"
	"github.com/casimir/freon/internal/tools/ui"
)

type options struct {
	baseURL string
	token   string
	timeout time.Duration
	ci      bool
}

// NewCommand builds the doctor subcommand: it probes a running instance and
// reports whether the health, info and token surfaces answer as expected.
func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Probe a running freon instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts)
			if opts.ci {
				common.PrintCIResult(err == nil, "doctor", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "freon base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "API token to verify against /api/v1/me")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-probe timeout")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}

func run(opts *options) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return probe(ctx, opts)
	}
	return ui.Run("freon doctor", func(ctx context.Context) ([]string, error) {
		return probe(ctx, opts)
	})
}

func probe(ctx context.Context, opts *options) ([]string, error) {
	var details []string

	for _, path := range []string{"/health/live", "/health/ready"} {
		if _, err := get(ctx, opts, path, ""); err != nil {
			return details, err
		}
		details = append(details, path+": ok")
	}

	body, err := get(ctx, opts, "/api/v1/info", "")
	if err != nil {
		return details, err
	}
	var info struct {
		Data struct {
			Appname string `json:"appname"`
			Version string `json:"version"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return details, fmt.Errorf("decode info: %w", err)
	}
	if info.Data.Appname != "freon" {
		return details, fmt.Errorf("unexpected appname %q", info.Data.Appname)
	}
	details = append(details, fmt.Sprintf("/api/v1/info: %s %s", info.Data.Appname, info.Data.Version))

	if opts.token != "" {
		body, err := get(ctx, opts, "/api/v1/me", opts.token)
		if err != nil {
			return details, err
		}
		var me struct {
			Data struct {
				Username string `json:"username"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &me); err != nil {
			return details, fmt.Errorf("decode me: %w", err)
		}
		details = append(details, "/api/v1/me: authenticated as "+me.Data.Username)
	}
	return details, nil
}

func get(ctx context.Context, opts *options, path, token string) ([]byte, error) {
	probeCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, opts.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
