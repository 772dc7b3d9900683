package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camstream/internal/streaming"
	"github.com/smazurov/camstream/internal/version"
)

const defaultURL = "http://127.0.0.1:8080/"

// remote talks to a running camstream daemon.
type remote struct {
	base    string
	timeout time.Duration
	client  *http.Client
}

func (r *remote) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.base, "url", "u", defaultURL, "Base URL of the camstream daemon")
	cmd.Flags().DurationVar(&r.timeout, "timeout", 10*time.Second, "Request timeout")
}

// get requests base with the given raw query, such as "snapshot&rotate=90".
func (r *remote) get(ctx context.Context, query string) (*http.Response, error) {
	u, err := url.Parse(r.base)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = query

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	client := r.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request %s: %w", u.Redacted(), err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// CreateInfoCmd creates the info command.
func CreateInfoCmd() *cobra.Command {
	r := &remote{}
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print statistics of a running daemon",
		Long:  `Fetches /?info from a running camstream daemon and prints the live statistics and startup configuration as JSON.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := r.get(cmd.Context(), "info")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("info: unexpected status %s", resp.Status)
			}

			var info streaming.Info
			if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
				return fmt.Errorf("info: decode: %w", err)
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	r.bind(cmd)
	return cmd
}

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	r := &remote{}
	var out string
	var rotate float64

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save one JPEG frame from a running daemon",
		Long:  `Fetches /?snapshot and writes the JPEG to --out, or to stdout when --out is "-".`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := "snapshot"
			if cmd.Flags().Changed("rotate") {
				query += "&rotate=" + strconv.FormatFloat(rotate, 'f', -1, 64)
			}

			resp, err := r.get(cmd.Context(), query)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
			case http.StatusTooEarly:
				return fmt.Errorf("snapshot: no frame available yet, retry in %ss", resp.Header.Get("Retry-After"))
			default:
				return fmt.Errorf("snapshot: unexpected status %s", resp.Status)
			}

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("snapshot: read: %w", err)
			}
			if out == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), bytes.NewReader(data))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), out)
			return nil
		},
	}
	r.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "snapshot.jpg", `Output file, "-" for stdout`)
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "Rotate counter-clockwise by this many degrees")
	return cmd
}

// CreateShutdownCmd creates the shutdown command.
func CreateShutdownCmd() *cobra.Command {
	r := &remote{}
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Ask a running daemon to exit",
		Long:  `Calls /?shutdown. The daemon drains its sessions and exits with status 75.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := r.get(cmd.Context(), "shutdown")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("shutdown: unexpected status %s", resp.Status)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Shutdown requested")
			return nil
		},
	}
	r.bind(cmd)
	return cmd
}
