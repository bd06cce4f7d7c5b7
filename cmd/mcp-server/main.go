package main

import (
	"context"
	"log"
	"os"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	// A token or a session file written by `pluginhub login` is required
	token := os.Getenv("PLUGINHUB_TOKEN")
	sessionFile := os.Getenv("PLUGINHUB_SESSION_FILE")
	if token == "" && sessionFile == "" {
		log.Fatal("PLUGINHUB_TOKEN or PLUGINHUB_SESSION_FILE environment variable is required")
	}

	client, err := pluginhub.NewClient(&pluginhub.ClientOptions{
		BaseURL:     os.Getenv("PLUGINHUB_BASE_URL"),
		Token:       token,
		SessionFile: sessionFile,
	})
	if err != nil {
		log.Fatalf("failed to initialize marketplace client: %v", err)
	}
	defer client.Close()

	impl := &mcp.Implementation{
		Name:    "pluginhub",
		Version: "1.0.0",
	}

	server := mcp.NewServer(impl, nil)
	registerTools(server, client)

	// stdio transport for desktop assistants
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func registerTools(server *mcp.Server, client *pluginhub.Client) {
	tools := &hubTools{client: client}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_plugins",
		Description: "Search the plugin catalog by text and category. Returns plugin names, categories, versions, download counts and whether a subscription is required.",
	}, tools.SearchPlugins)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_plugin",
		Description: "Get the full details of one plugin by ID.",
	}, tools.GetPlugin)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_subscription",
		Description: "Get the signed-in user's subscription status, plan and renewal date.",
	}, tools.GetSubscription)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_affiliate_dashboard",
		Description: "Get the signed-in affiliate's referral link, click and conversion counts and earnings.",
	}, tools.GetAffiliateDashboard)
}
