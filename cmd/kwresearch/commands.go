package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/seovimalraj/locations/internal/app"
	"github.com/seovimalraj/locations/internal/research"
	"github.com/seovimalraj/locations/internal/server"
	"github.com/seovimalraj/locations/pkg/config"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
)

// errToolFailed signals that the error body was already printed.
var errToolFailed = errors.New("tool failed")

type cli struct {
	out, errOut io.Writer
	cfgFile     string
	logLevel    string

	// invoke is replaced in tests.
	invoke func(ctx context.Context, tool string, input json.RawMessage) (any, error)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kwresearch",
		Short:         "Run keyword research tools locally and print JSON results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(c.researchCmd(), c.extractCmd(), c.generateCmd(), c.toolCmd())
	return root
}

// setup loads configuration and builds the tools unless a test already
// supplied an invoke function. Logs go to stderr so stdout stays JSON.
func (c *cli) setup() error {
	if c.invoke != nil {
		return nil
	}
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	logger.SetupWriter(c.errOut, level, "text")
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	c.invoke = a.Tools.Invoke
	return nil
}

func (c *cli) run(cmd *cobra.Command, tool string, input any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encoding input: %w", err)
	}
	return c.runRaw(cmd, tool, raw)
}

func (c *cli) runRaw(cmd *cobra.Command, tool string, raw json.RawMessage) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	result, err := c.invoke(ctx, tool, raw)
	if errors.Is(err, server.ErrUnknownTool) {
		return fmt.Errorf("unknown tool %q", tool)
	}
	if err != nil {
		enc.Encode(map[string]any{"error": apperrors.ToBody(err)})
		fmt.Fprintf(c.errOut, "%s failed: %v\n", tool, err)
		return errToolFailed
	}
	return enc.Encode(map[string]any{"result": result})
}

func (c *cli) researchCmd() *cobra.Command {
	var (
		req         research.Request
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Research keywords for a title and optional content",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				data, err := readInput(cmd, contentFile)
				if err != nil {
					return err
				}
				req.Content = string(data)
			}
			return c.run(cmd, server.ToolResearch, req)
		},
	}
	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "page title (required)")
	cmd.Flags().StringVar(&req.Content, "content", "", "page content")
	cmd.Flags().StringVarP(&contentFile, "content-file", "f", "", "read content from a file, or - for stdin")
	cmd.Flags().BoolVar(&req.Cluster, "cluster", false, "attach intent clusters to the result")
	cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) extractCmd() *cobra.Command {
	var (
		site     string
		pattern  string
		maxPages int
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract pages and posts from a WordPress site",
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{"siteUrl": site}
			if pattern != "" {
				input["pathPattern"] = pattern
			}
			if cmd.Flags().Changed("max-pages") {
				input["maxPages"] = maxPages
			}
			return c.run(cmd, server.ToolExtract, input)
		},
	}
	cmd.Flags().StringVarP(&site, "site", "s", "", "WordPress site URL (defaults to the configured site)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "regular expression paths must match")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum result pages to fetch per resource")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [input.json|-]",
		Short: "Generate optimised content from a JSON structure and keywords",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			data, err := readInput(cmd, src)
			if err != nil {
				return err
			}
			return c.runRaw(cmd, server.ToolGenerate, data)
		},
	}
	return cmd
}

func (c *cli) toolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool <name> [input.json|-]",
		Short: "Invoke any tool with a raw JSON input",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			data, err := readInput(cmd, src)
			if err != nil {
				return err
			}
			return c.runRaw(cmd, args[0], data)
		},
	}
}

func readInput(cmd *cobra.Command, src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}
	return data, nil
}
