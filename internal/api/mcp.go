package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/20223096/mbti-app/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session   Session
	Exchanges ExchangeReader // optional; session://exchanges is not registered when nil
	Version   string
}

// NewMCPServer creates an MCP server with the session tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"mbtichat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mbtichat: relationship chat assistant that keeps a traits profile for the selected personality type."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send one user message to the assistant and return its reply with follow-up suggestions."),
			mcp.WithString("text", mcp.Description("The message to send"), mcp.Required()),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("set_selection",
			mcp.WithDescription("Set the personality type and relationship tags used for later messages."),
			mcp.WithString("mbti", mcp.Description("Four-letter personality type, e.g. ISTP")),
			mcp.WithString("relationship_type", mcp.Description("Relationship type tag, e.g. romantic_interest")),
			mcp.WithString("relationship_state", mcp.Description("Relationship state tag, e.g. exploring")),
		),
		mcpSetSelection(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_session",
			mcp.WithDescription("Clear the conversation and the stored traits profile."),
		),
		mcpResetSession(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"session://profile",
			"Traits Profile",
			mcp.WithResourceDescription("Current traits profile as JSON (null when none is active)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://messages",
			"Conversation",
			mcp.WithResourceDescription("Conversation turns in order"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMessages(deps),
	)

	if deps.Exchanges != nil {
		s.AddResource(
			mcp.NewResource(
				"session://exchanges",
				"Recent Exchanges",
				mcp.WithResourceDescription("Last 10 journaled exchanges (truncated user text only)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceExchanges(deps),
		)
	}

	return s
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		res, err := deps.Session.Submit(ctx, text)
		switch {
		case errors.Is(err, pipeline.ErrEmptyMessage):
			return mcpError("text must not be empty"), nil
		case errors.Is(err, pipeline.ErrBusy):
			return mcpError("a message is already being sent; try again shortly"), nil
		case err != nil:
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if res.Outcome == pipeline.OutcomeFailed {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetSelection(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sel := pipeline.Selection{
			Label:             req.GetString("mbti", ""),
			RelationshipType:  req.GetString("relationship_type", ""),
			RelationshipState: req.GetString("relationship_state", ""),
		}
		if err := deps.Session.SetSelection(sel); err != nil {
			return mcpError(fmt.Sprintf("failed to set selection: %v", err)), nil
		}

		b, err := json.Marshal(deps.Session.Status().Selection)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal selection: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Session.Reset(); err != nil {
			return mcpError(fmt.Sprintf("reset failed: %v", err)), nil
		}
		return mcpText("Session reset"), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Session.Profile())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return jsonResource(req.Params.URI, b), nil
	}
}

func mcpResourceMessages(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Session.Messages())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal messages: %w", err)
		}
		return jsonResource(req.Params.URI, b), nil
	}
}

func mcpResourceExchanges(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		exchanges, err := deps.Exchanges.ListExchanges(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list exchanges: %w", err)
		}

		type exchangeSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Label     string `json:"label,omitempty"`
			UserText  string `json:"user_text"`
			Outcome   string `json:"outcome"`
		}

		summaries := make([]exchangeSummary, len(exchanges))
		for i, e := range exchanges {
			text := e.UserText
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = exchangeSummary{
				ID:        e.ID,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
				Label:     e.Label,
				UserText:  text,
				Outcome:   e.Outcome,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal exchanges: %w", err)
		}
		return jsonResource(req.Params.URI, b), nil
	}
}

func jsonResource(uri string, b []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
