package main

import (
	"github.com/metalagman/taskgraph/internal/mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP stdio",
		Long:  "Serve create_task, add_dependency, update_status, would_create_cycle, get_task and list_tasks as MCP tools on stdin/stdout, acting as the user given by --as.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openEnv()
			if err != nil {
				return err
			}
			defer closeFn()
			caller, err := e.caller(cmd.Context(), as)
			if err != nil {
				return err
			}
			return mcpserver.New(e.svc, caller).Run(cmd.Context(), version, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "email of the acting user")
	return cmd
}
