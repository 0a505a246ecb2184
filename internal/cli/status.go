package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/orchestrator/internal/config"
	"github.com/soyeahso/orchestrator/internal/llm"
	"github.com/soyeahso/orchestrator/internal/runtimepolicy"
	"github.com/soyeahso/orchestrator/internal/version"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show orchestrator status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := o.cfg

			fmt.Fprintf(out, "Orchestrator %s (commit %s)\n\n", version.Version, version.Commit)

			// Paths
			configNote := ""
			if _, err := os.Stat(o.paths.Config); os.IsNotExist(err) {
				configNote = " (not found, using defaults)"
			}
			fmt.Fprintf(out, "Config:  %s%s\n", o.paths.Config, configNote)
			fmt.Fprintf(out, "Data:    %s\n", o.paths.Data)
			agentsDir, err := o.resolveAgentsDir()
			if err != nil {
				agentsDir = "(unknown: " + err.Error() + ")"
			}
			fmt.Fprintf(out, "Agents:  %s\n", agentsDir)
			fmt.Fprintln(out)

			// Server
			fmt.Fprintf(out, "Server:  http://%s web=%v accessLog=%v origins=%s\n",
				cfg.Server.Addr(), cfg.Server.WebEnabled(), cfg.Server.AccessLogEnabled(),
				strings.Join(cfg.Server.AllowOrigins, ","))

			// Models
			registry := llm.NewRegistryFromConfig(cfg.Models, o.log)
			fmt.Fprintf(out, "Models:  default=%s providers=%s\n", cfg.Models.Default, strings.Join(registry.List(), ", "))
			if cfg.Models.Gemini.UseVertexAI {
				fmt.Fprintf(out, "Gemini:  vertex project=%s location=%s\n", cfg.Models.Gemini.Project, cfg.Models.Gemini.Location)
			} else {
				fmt.Fprintf(out, "Gemini:  api key=%s\n", setOrMissing(cfg.Models.Gemini.APIKey))
			}
			fmt.Fprintf(out, "Claude:  api key=%s\n", setOrMissing(cfg.Models.Claude.APIKey))
			fmt.Fprintf(out, "Ollama:  %s\n", cfg.Models.Ollama.Endpoint)

			// Runtime and traces
			policy := cfg.Runtime.Policy
			if policy == runtimepolicy.Auto {
				policy += " -> " + runtimepolicy.ForPlatform(runtime.GOOS)
			}
			fmt.Fprintf(out, "Runtime: policy=%s\n", policy)
			if cfg.Trace.TraceEnabled() {
				where := "memory"
				if cfg.Trace.Store == "sqlite" {
					where = filepath.Join(o.paths.Data, "traces.db")
				}
				fmt.Fprintf(out, "Traces:  %s\n", where)
			} else {
				fmt.Fprintln(out, "Traces:  disabled")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}

func setOrMissing(s string) string {
	if s == "" {
		return "missing"
	}
	return "set"
}
