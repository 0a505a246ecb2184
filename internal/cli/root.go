package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/orchestrator/internal/config"
	"github.com/soyeahso/orchestrator/internal/logging"
	"github.com/soyeahso/orchestrator/internal/runtimepolicy"
	"github.com/soyeahso/orchestrator/internal/server"
)

// options carries flag values and the state PersistentPreRunE resolves from
// them. One value lives per command tree, so tests can build several trees.
type options struct {
	cfgFile   string
	logLevel  string
	envFile   string
	agentsDir string
	host      string
	port      int

	// set by PersistentPreRunE
	paths config.Paths
	cfg   config.Config
	log   *logging.Logger

	// test seams
	logOut   io.Writer
	selector func(*logging.Logger) *runtimepolicy.Selector
	onReady  func(*server.Server)
}

func newOptions() *options {
	return &options{
		selector: runtimepolicy.NewSelector,
	}
}

func newRootCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Orchestrator Agent server",
		Long: "Orchestrator serves the orchestrator_agent, which routes user queries to the\n" +
			"available agents, through the agent web application (REST, SSE, live websocket and dev UI).",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), o)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.cfgFile, "config", "", "config file (default ~/.orchestrator/config.yaml)")
	pf.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	pf.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before configuration is read")
	pf.StringVar(&o.agentsDir, "agents-dir", "", "directory holding agent definitions (default: the executable's directory)")

	cmd.Flags().StringVar(&o.host, "host", config.DefaultHost, "the host to bind the server to")
	cmd.Flags().IntVar(&o.port, "port", config.DefaultPort, "the port to bind the server to")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAgentsCmd(o))
	cmd.AddCommand(newConfigCmd(o))
	cmd.AddCommand(newStatusCmd(o))
	cmd.AddCommand(newMessageCmd(o))

	return cmd
}

// setup loads .env, then the config file and environment, then applies the
// flags the user set, and finally builds the logger.
func (o *options) setup(cmd *cobra.Command) error {
	if _, err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}

	var err error
	o.paths, err = config.ResolvePaths()
	if err != nil {
		return err
	}
	if o.cfgFile != "" {
		o.paths.Config = o.cfgFile
	}

	o.cfg, err = config.Load(o.paths.Config)
	if err != nil {
		return err
	}
	o.applyFlags(cmd)

	o.log = logging.NewStyled(o.logOut, o.cfg.Logging.Level, o.cfg.Logging.ConsoleStyle)
	return nil
}

// applyFlags overrides config with flags given on the command line. Flag
// defaults never override a value from the file or environment.
func (o *options) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		o.cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		o.cfg.Server.Port = o.port
	}
	if o.agentsDir != "" {
		o.cfg.Agents.Dir = o.agentsDir
	}
	if o.logLevel != "" {
		o.cfg.Logging.Level = o.logLevel
	}
}

// validate logs every config issue and fails if there are any.
func (o *options) validate() error {
	issues := config.Validate(&o.cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		o.log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

// resolveAgentsDir returns the configured agents dir, defaulting to the
// directory that holds the executable.
func (o *options) resolveAgentsDir() (string, error) {
	if o.cfg.Agents.Dir != "" {
		return o.cfg.Agents.Dir, nil
	}
	dir, err := config.ExecutableDir()
	if err != nil {
		return "", fmt.Errorf("locating agents dir: %w", err)
	}
	return dir, nil
}

// Execute runs the root command. Errors are logged before they are returned.
func Execute() error {
	o := newOptions()
	err := newRootCmd(o).ExecuteContext(context.Background())
	if err != nil {
		if o.log != nil {
			o.log.Error().Err(err).Msg("orchestrator exited")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
