package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/soyeahso/orchestrator/internal/agentdef"
	"github.com/soyeahso/orchestrator/internal/llm"
	"github.com/soyeahso/orchestrator/internal/logging"
)

func newMessageCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send messages to an agent without starting the server",
	}

	cmd.AddCommand(newMessageSendCmd(o))
	return cmd
}

func newMessageSendCmd(o *options) *cobra.Command {
	var (
		app    string
		user   string
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to an agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cat, err := o.loadCatalog()
			if err != nil {
				return err
			}
			if _, ok := cat.Get(app); !ok {
				return fmt.Errorf("agent app not found: %s", app)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := llm.NewRegistryFromConfig(o.cfg.Models, o.log)
			return sendMessage(ctx, cmd, o.log, cat, registry, app, user, message, stream)
		},
	}

	cmd.Flags().StringVar(&app, "app", agentdef.OrchestratorApp, "agent app to send to")
	cmd.Flags().StringVar(&user, "user", "cli", "user id for the one-off session")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the response")

	return cmd
}

// sendMessage runs one turn of app in a throwaway in-memory session and
// prints the agent's reply.
func sendMessage(ctx context.Context, cmd *cobra.Command, log *logging.Logger, cat *agentdef.Catalog, models agentdef.ModelResolver, app, user, message string, stream bool) error {
	agents, err := agentdef.Build(ctx, cat, models, log)
	if err != nil {
		return err
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        app,
		Agent:          agents[app],
		SessionService: sessions,
	})
	if err != nil {
		return err
	}
	created, err := sessions.Create(ctx, &session.CreateRequest{AppName: app, UserID: user})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	mode := agent.StreamingModeNone
	if stream {
		mode = agent.StreamingModeSSE
	}

	out := cmd.OutOrStdout()
	var usage *genai.GenerateContentResponseUsageMetadata
	content := genai.NewContentFromText(message, genai.RoleUser)
	for ev, err := range r.Run(ctx, user, created.Session.ID(), content, agent.RunConfig{StreamingMode: mode}) {
		if err != nil {
			return err
		}
		if ev == nil || ev.Content == nil || ev.Author == "user" {
			continue
		}
		if ev.UsageMetadata != nil {
			usage = ev.UsageMetadata
		}
		text := contentText(ev.Content)
		switch {
		case stream && ev.Partial:
			fmt.Fprint(out, text)
		case stream:
			fmt.Fprintln(out)
		case text != "":
			fmt.Fprintln(out, text)
		}
	}

	if usage != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[app=%s tokens=%d+%d]\n", app, usage.PromptTokenCount, usage.CandidatesTokenCount)
	}
	return nil
}

func contentText(c *genai.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
