package main

import (
	"github.com/spf13/cobra"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	srv "github.com/SynapGarden/NVIDIA-blog-mcp/internal/server"
)

func apiCMD() *cobra.Command {
	var addr string
	var cfgPath string
	var api = &cobra.Command{
		Use:   "api",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if addr != "" {
				cfg.Server.Address = addr
			}
			return srv.Run(cmd.Context(), cfg)
		},
	}
	api.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	api.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return api
}
