package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/orchestrator/internal/agentdef"
	"github.com/soyeahso/orchestrator/internal/llm"
)

func newAgentsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agent apps the server would host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := o.loadCatalog()
			if err != nil {
				return err
			}
			registry := llm.NewRegistryFromConfig(o.cfg.Models, o.log)

			out := cmd.OutOrStdout()
			for _, app := range cat.Apps() {
				def, _ := cat.Get(app)
				provider, _, err := registry.Route(def.Model)
				if err != nil {
					provider = "?"
				}
				fmt.Fprintf(out, "  %-24s %-20s model=%s provider=%s tools=%d source=%s\n",
					app, def.Name, def.Model, provider, len(def.Tools), def.Source)
			}
			return nil
		},
	}

	cmd.AddCommand(newAgentsInfoCmd(o))
	return cmd
}

func newAgentsInfoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info [app]",
		Short: "Show the definition of an agent app (default: the orchestrator)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := o.loadCatalog()
			if err != nil {
				return err
			}

			app := agentdef.OrchestratorApp
			if len(args) > 0 {
				app = args[0]
			}
			def, ok := cat.Get(app)
			if !ok {
				return fmt.Errorf("agent app not found: %s (have %s)", app, strings.Join(cat.Apps(), ", "))
			}

			data, err := yaml.Marshal(def)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s (%s)\n%s", app, def.Source, data)
			return nil
		},
	}
}

// loadCatalog discovers agent definitions the same way the server does.
func (o *options) loadCatalog() (*agentdef.Catalog, error) {
	dir, err := o.resolveAgentsDir()
	if err != nil {
		return nil, err
	}
	return agentdef.LoadCatalog(dir, o.log)
}
