package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/ui"
)

var agentsCmd = &cobra.Command{
	Use:     "agents",
	Aliases: []string{"agent"},
	Short:   "Browse the agent registry",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		agentType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		agents, err := store.ListAgents(cmd.Context(), registry.ListOptions{AgentType: agentType, Limit: limit})
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), output, agents, func() string { return ui.RenderAgents(agents) })
	},
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Show one agent's specification and QA scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		agent, err := store.GetAgent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), output, agent, func() string { return ui.RenderAgent(agent) })
	},
}

var agentsAuditCmd = &cobra.Command{
	Use:   "audit <agent-or-request-id>",
	Short: "Show the audit trail of a creation request",
	Long: `Audit prints every recorded pipeline event for an agent id, or for the
request id of a request that never produced an agent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		events, err := store.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), output, events, func() string { return ui.RenderAudit(events) })
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsShowCmd, agentsAuditCmd)

	agentsListCmd.Flags().String("type", "", "only list agents of this type")
	agentsListCmd.Flags().Int("limit", 50, "maximum number of agents")
	for _, c := range []*cobra.Command{agentsListCmd, agentsShowCmd, agentsAuditCmd} {
		c.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	}
}
