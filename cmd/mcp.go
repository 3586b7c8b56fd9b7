/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server so AI tools can create agents",
	Long: `Start a Model Context Protocol server on stdio. Tools:

  create_agent  run the creation pipeline for an instruction
  list_agents   list registered agents
  get_agent     fetch one agent's specification

The server runs until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// CreateAgentParams is the create_agent input.
type CreateAgentParams struct {
	Instruction string `json:"instruction" mcp:"What the agent should do, in plain language (10 to 5000 characters)"`
}

// ListAgentsParams is the list_agents input.
type ListAgentsParams struct {
	Type  string `json:"type,omitempty" mcp:"Only agents of this type, e.g. code_reviewer"`
	Limit int    `json:"limit,omitempty" mcp:"Maximum number of agents (default 20)"`
}

// GetAgentParams is the get_agent input.
type GetAgentParams struct {
	AgentID string `json:"agent_id" mcp:"Agent id returned by create_agent or list_agents"`
}

// AgentList is the list_agents output.
type AgentList struct {
	Agents []server.AgentCard `json:"agents"`
	Count  int                `json:"count"`
}

type agentCreator interface {
	Create(ctx context.Context, instruction string, opts app.CreateOptions) (*app.CreateResult, error)
}

type agentReader interface {
	GetAgent(ctx context.Context, id string) (*registry.Agent, error)
	ListAgents(ctx context.Context, opts registry.ListOptions) ([]registry.Agent, error)
}

func runMCPServer(ctx context.Context) error {
	// stdout carries JSON-RPC only; everything else goes to stderr.
	fmt.Fprintln(os.Stderr, "genesis MCP server starting...")

	svc, err := openServices(ctx, settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := newMCPServer(svc.create, svc.store)
	if err := srv.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func newMCPServer(creator agentCreator, store agentReader) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "genesis-mcp", Version: version}, &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintln(os.Stderr, "✓ MCP connection established")
		},
	})

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name: "create_agent",
		Description: "Create, test and register an agent from a natural-language instruction. " +
			"Runs interpretation, model selection and QA with automatic retries; this can take a minute. " +
			"Returns the agent id and endpoint on success, or feedback and a suggestion when QA keeps failing.",
	}, createAgentHandler(creator))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "list_agents",
		Description: "List registered agents, newest first.",
	}, listAgentsHandler(store))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "get_agent",
		Description: "Get a registered agent's specification, model and QA scores.",
	}, getAgentHandler(store))
	return srv
}

func createAgentHandler(creator agentCreator) mcpsdk.ToolHandlerFor[CreateAgentParams, app.CreateResult] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[CreateAgentParams]) (*mcpsdk.CallToolResultFor[app.CreateResult], error) {
		instruction := strings.TrimSpace(params.Arguments.Instruction)
		res, err := creator.Create(ctx, instruction, app.CreateOptions{})
		if err != nil {
			return mcpError[app.CreateResult](fmt.Sprintf("%s: %s", app.FailureKind(err), userMessage(err))), nil
		}
		text := fmt.Sprintf("Agent %s (%s) registered at %s after %d retries.", res.AgentID, res.AgentType, res.Endpoint, res.RetryCount)
		if !res.Success {
			text = fmt.Sprintf("%s\nFeedback: %s\nSuggestion: %s", res.Message, res.Feedback, res.Suggestion)
		}
		return &mcpsdk.CallToolResultFor[app.CreateResult]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: *res,
			IsError:           !res.Success,
		}, nil
	}
}

func listAgentsHandler(store agentReader) mcpsdk.ToolHandlerFor[ListAgentsParams, AgentList] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ListAgentsParams]) (*mcpsdk.CallToolResultFor[AgentList], error) {
		limit := params.Arguments.Limit
		if limit <= 0 {
			limit = 20
		}
		agents, err := store.ListAgents(ctx, registry.ListOptions{AgentType: params.Arguments.Type, Limit: limit})
		if err != nil {
			return mcpError[AgentList](err.Error()), nil
		}
		list := AgentList{Agents: make([]server.AgentCard, 0, len(agents)), Count: len(agents)}
		for _, a := range agents {
			list.Agents = append(list.Agents, server.CardFor(a))
		}
		return &mcpsdk.CallToolResultFor[AgentList]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: jsonText(list)}},
			StructuredContent: list,
		}, nil
	}
}

func getAgentHandler(store agentReader) mcpsdk.ToolHandlerFor[GetAgentParams, registry.Agent] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[GetAgentParams]) (*mcpsdk.CallToolResultFor[registry.Agent], error) {
		id := strings.TrimSpace(params.Arguments.AgentID)
		if id == "" {
			return mcpError[registry.Agent]("agent_id is required"), nil
		}
		agent, err := store.GetAgent(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			return mcpError[registry.Agent](fmt.Sprintf("no agent with id %q", id)), nil
		}
		if err != nil {
			return mcpError[registry.Agent](err.Error()), nil
		}
		return &mcpsdk.CallToolResultFor[registry.Agent]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: jsonText(agent)}},
			StructuredContent: *agent,
		}, nil
	}
}

// mcpError reports a tool failure inside the result so the client model
// can read it and correct its call.
func mcpError[T any](msg string) *mcpsdk.CallToolResultFor[T] {
	return &mcpsdk.CallToolResultFor[T]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}
}

func jsonText(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
