package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/app"
	"github.com/SynapGarden/NVIDIA-blog-mcp/mcp"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return mcp.NewServer(a).Serve(os.Stdin, os.Stdout)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
