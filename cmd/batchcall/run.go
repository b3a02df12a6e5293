package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/azargarov/batchcall"
	"github.com/azargarov/batchcall/internal/httpcall"
)

type payload = map[string]any

// itemRecord is one entry of the items file.
type itemRecord struct {
	ID      int     `yaml:"id"`
	Payload payload `yaml:"payload"`
}

// resultLine is one line of the JSON-lines output.
type resultLine struct {
	ID       int    `json:"id"`
	OK       bool   `json:"ok"`
	Attempts int    `json:"attempts"`
	Value    any    `json:"value,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runCmd() *cobra.Command {
	var header []string
	cmd := &cobra.Command{
		Use:   "run <items-file>",
		Short: "Post every item payload to the endpoint and print results as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Endpoint == "" {
				return errors.New("endpoint is not configured (config endpoint or BATCHCALL_ENDPOINT)")
			}
			s, err := cfg.ParseStrategy()
			if err != nil {
				return err
			}

			items, err := readItems(args[0])
			if err != nil {
				return err
			}

			logger, opts, stop := setup(cfg)
			defer stop()

			client := httpcall.New[payload](cfg.Endpoint, time.Duration(cfg.HTTPTimeout))
			for _, h := range header {
				k, v, ok := cutHeader(h)
				if !ok {
					return fmt.Errorf("bad header %q, want Key: Value", h)
				}
				client.Header.Add(k, v)
			}

			ex, err := batchcall.New(batchcall.DecodeJSON[payload, any](client), opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			rs, runErr := ex.RunBatch(ctx, items, s)
			if rs == nil {
				return runErr
			}
			if err := writeResults(cmd.OutOrStdout(), rs); err != nil {
				return err
			}

			r := rs.Report()
			logger.Info("run complete",
				zap.String("items", humanize.Comma(int64(r.Items))),
				zap.String("failed", humanize.Comma(int64(r.Failed))),
				zap.Duration("elapsed", r.Elapsed),
			)
			return runErr
		},
	}
	cmd.Flags().StringArrayVarP(&header, "header", "H", nil, "Extra request header, e.g. \"Authorization: Bearer x\"")
	return cmd
}

// readItems loads a YAML (or JSON) list of {id, payload} records.
func readItems(path string) ([]batchcall.WorkItem[payload], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var recs []itemRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse items %s: %w", path, err)
	}
	items := make([]batchcall.WorkItem[payload], len(recs))
	for i, r := range recs {
		items[i] = batchcall.WorkItem[payload]{ID: r.ID, Payload: r.Payload}
	}
	return items, nil
}

func writeResults(w io.Writer, rs *batchcall.ResultSet[any]) error {
	enc := json.NewEncoder(w)
	for _, r := range rs.Results() {
		line := resultLine{ID: r.ID, OK: r.OK(), Attempts: r.Attempts, Value: r.Value}
		if r.Err != nil {
			line.Kind = r.Err.Kind.String()
			line.Error = r.Err.Detail
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func cutHeader(h string) (string, string, bool) {
	k, v, ok := strings.Cut(h, ":")
	k = strings.TrimSpace(k)
	return k, strings.TrimSpace(v), ok && k != ""
}
