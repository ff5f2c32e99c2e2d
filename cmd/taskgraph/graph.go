package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the dependency graph",
	}
	cmd.AddCommand(graphVerifyCmd())
	return cmd
}

func graphVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the stored dependency graph is acyclic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openEnv()
			if err != nil {
				return err
			}
			defer closeFn()
			cycle, edges, err := e.svc.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if len(cycle) > 0 {
				parts := make([]string, 0, len(cycle))
				for _, id := range cycle {
					parts = append(parts, fmt.Sprint(id))
				}
				return fmt.Errorf("dependency cycle found: %s", strings.Join(parts, " -> "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "graph is acyclic (%d edges)\n", edges)
			return nil
		},
	}
}
