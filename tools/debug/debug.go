package debug

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xhd2015/dlv-connect/debug"
	"github.com/xhd2015/dlv-connect/debug/connect"
	"github.com/xhd2015/dlv-connect/debug/headless"
)

type ToolOptions struct {
	Manager     *debug.OptionsManager
	DialOptions headless.DialOptions
	Logger      logr.Logger
}

// RegisterTools registers the connect options tools with the MCP server
func RegisterTools(s *server.MCPServer, opts ToolOptions) error {
	if opts.Manager == nil {
		return fmt.Errorf("options manager is required")
	}

	registerCreateOptionsTool(s, opts)
	registerListOptionsTool(s, opts.Manager)
	registerReleaseOptionsTool(s, opts.Manager)
	registerConnectHeadlessTool(s, opts)

	return nil
}

// stringArg returns nil when the argument is missing or not a string
func stringArg(request mcp.CallToolRequest, name string) *string {
	v, ok := request.Params.Arguments[name].(string)
	if !ok {
		return nil
	}
	return &v
}

// registerCreateOptionsTool registers the create connect options tool
func registerCreateOptionsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("create_connect_options",
		mcp.WithDescription("Create native connect options from a connection locator such as connect://host:port. The locator is not checked for reachability."),
		mcp.WithString("locator",
			mcp.Required(),
			mcp.Description("Connection locator, e.g. connect://10.0.0.5:4242 or unix-connect:///tmp/dlv.sock"),
		),
		mcp.WithString("encoding",
			mcp.Description("IANA name of the native narrow encoding, e.g. UTF-8 or windows-1252 (default: platform encoding)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		locator := stringArg(request, "locator")

		factory := opts.Manager.Factory()
		if enc := stringArg(request, "encoding"); enc != nil && *enc != "" {
			bridge, err := connect.BridgeByName(*enc)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to select encoding: %v", err)), nil
			}
			factory = factory.ForBridge(bridge)
		}

		info, err := opts.Manager.CreateWith(factory, locator)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create connect options: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Connect options created with ID: %s\nURL: %s\nBackend: %s",
			info.ID, info.URL, info.Backend)), nil
	})
}

// registerListOptionsTool registers the list connect options tool
func registerListOptionsTool(s *server.MCPServer, manager *debug.OptionsManager) {
	tool := mcp.NewTool("list_connect_options",
		mcp.WithDescription("List connect options that have not been released"),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos := manager.List()
		if len(infos) == 0 {
			return mcp.NewToolResultText("No connect options"), nil
		}

		var b strings.Builder
		b.WriteString("Connect options:\n\n")
		for _, info := range infos {
			fmt.Fprintf(&b, "ID: %s\nURL: %s\nBackend: %s\nConsumed: %v\n\n", info.ID, info.URL, info.Backend, info.Consumed)
		}
		return mcp.NewToolResultText(b.String()), nil
	})
}

// registerReleaseOptionsTool registers the release connect options tool
func registerReleaseOptionsTool(s *server.MCPServer, manager *debug.OptionsManager) {
	tool := mcp.NewTool("release_connect_options",
		mcp.WithDescription("Release connect options and the native value they own"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the connect options"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.Params.Arguments["id"].(string)

		if err := manager.Release(id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to release connect options: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Connect options %s released", id)), nil
	})
}

// registerConnectHeadlessTool registers the connect headless tool
func registerConnectHeadlessTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("connect_headless",
		mcp.WithDescription("Connect to the Delve headless server named by connect options and report its state. Connect options can be used for one connection only."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the connect options"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.Params.Arguments["id"].(string)

		connectOpts, err := opts.Manager.Get(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get connect options: %v", err)), nil
		}

		client, err := headless.Dial(ctx, connectOpts, opts.DialOptions)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
		}
		defer client.Disconnect(false)

		state, err := client.GetState()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get debugger state: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Connected to %s\nRunning: %v\nExited: %v",
			connectOpts.Locator(), state.Running, state.Exited)), nil
	})
}
