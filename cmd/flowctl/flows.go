package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
)

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(cmd *cobra.Command, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}

// errInvalid makes the command exit non-zero after the report is printed.
var errInvalid = errors.New("flow is invalid")

// loadGraph parses a flow document and runs validation. Parse failures are
// returned as validation errors so callers report both the same way.
func loadGraph(raw []byte, opts ...flowgraph.Option) (*flowgraph.FlowGraph, flowgraph.ValidationErrors) {
	g, err := flowgraph.Parse(raw)
	if err != nil {
		var errs flowgraph.ValidationErrors
		if errors.As(err, &errs) {
			return nil, errs
		}
		return nil, flowgraph.ValidationErrors{{Stage: flowgraph.StageStructural, Path: "$", Message: err.Error()}}
	}
	return g, flowgraph.Validate(g, opts...)
}

func newValidateCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a flow document (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var opts []flowgraph.Option
			if strict {
				opts = append(opts, flowgraph.WithCatalog(catalog.Default()))
			}
			_, errs := loadGraph(raw, opts...)
			if errs == nil {
				errs = flowgraph.ValidationErrors{}
			}
			if err := printJSON(cmd, map[string]any{"valid": len(errs) == 0, "errors": errs}); err != nil {
				return err
			}
			if len(errs) > 0 {
				a.logger.Debug("validation failed", "stage", errs.Stage(), "count", len(errs))
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also check components and ports against the catalog")
	return cmd
}

func newHandleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Encode and decode edge handle strings",
		// Handle conversion needs no configuration.
		PersistentPreRun: func(*cobra.Command, []string) {},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "decode HANDLE",
		Short: "Decode a source or target handle into JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := decodeAnyHandle(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, h)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "encode-source JSON",
		Short: "Encode a source handle descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var h flowgraph.SourceHandle
			if err := json.Unmarshal([]byte(args[0]), &h); err != nil {
				return fmt.Errorf("parse descriptor: %w", err)
			}
			s, err := flowgraph.EncodeSourceHandle(h)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "encode-target JSON",
		Short: "Encode a target handle descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var h flowgraph.TargetHandle
			if err := json.Unmarshal([]byte(args[0]), &h); err != nil {
				return fmt.Errorf("parse descriptor: %w", err)
			}
			s, err := flowgraph.EncodeTargetHandle(h)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	})
	return cmd
}

// decodeAnyHandle decodes a source handle when the string carries output
// types and a target handle otherwise.
func decodeAnyHandle(s string) (any, error) {
	if strings.Contains(s, flowgraph.Sentinel+"output_types"+flowgraph.Sentinel) {
		h, err := flowgraph.DecodeSourceHandle(s)
		return h, err
	}
	h, err := flowgraph.DecodeTargetHandle(s)
	return h, err
}

func (a *app) builder() *langflow.Client {
	return langflow.NewClient(a.cfg.Builder.BaseURL, a.cfg.Builder.APIKey, a.cfg.Builder.Timeout, nil)
}

func newPushCmd(a *app) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Create a flow on the builder from a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			g, errs := loadGraph(raw)
			if len(errs) > 0 {
				_ = printJSON(cmd, map[string]any{"valid": false, "errors": errs})
				return errInvalid
			}
			res, err := a.builder().Push(cmd.Context(), g, folder)
			if err != nil {
				return err
			}
			a.logger.Info("flow pushed", "flow_id", res.FlowID, "folder_id", folder)
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "builder folder to create the flow in")
	return cmd
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull FLOW_ID",
		Short: "Print the builder's copy of a flow as a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := a.builder().Pull(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			g, err := remote.Graph()
			if err != nil {
				return err
			}
			if errs := flowgraph.Validate(g); len(errs) > 0 {
				a.logger.Warn("pulled flow has validation issues", "flow_id", args[0], "stage", errs.Stage(), "count", len(errs))
			}
			return printJSON(cmd, g)
		},
	}
}
