package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/ingest"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/provider"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var daemon bool
	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Mirror blog feeds into the corpus and vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if len(cfg.Ingest.Feeds) == 0 {
				return fmt.Errorf("no feeds configured (ingest.feeds)")
			}
			ctx := cmd.Context()

			hc := httpx.New(cfg.Engine.CallTimeout, cfg.Engine.RetryAttempts, cfg.Engine.RetryBackoff)
			prov, err := provider.NewProvider(cfg.Provider, cfg.Vertex, hc)
			if err != nil {
				return err
			}
			processed, err := ingest.NewProcessedSet(ctx, cfg.Storage.Redis)
			if err != nil {
				return err
			}
			defer processed.Close()

			corpusW, err := ingest.NewCorpusWriter(cfg.Vertex, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
			if err != nil {
				return err
			}
			vectorW, err := ingest.NewVectorWriter(cfg.Vertex, prov, hc)
			if err != nil {
				return err
			}
			fetcher := ingest.NewFetcher(hc, cfg.Ingest.UserAgent)
			ing := ingest.NewIngester(cfg.Ingest, fetcher, processed, corpusW, vectorW)

			if !daemon {
				stats, err := ing.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("ingested %d of %d items (%d skipped, %d failed)\n",
					stats.Ingested, stats.Seen, stats.Skipped, stats.Failed)
				return nil
			}

			sched, err := ingest.NewScheduler(ing, cfg.Ingest.Cron)
			if err != nil {
				return fmt.Errorf("ingest.cron: %w", err)
			}
			sched.Start()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			close(sched.Stop)
			return nil
		},
	}
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run on the configured cron schedule")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
