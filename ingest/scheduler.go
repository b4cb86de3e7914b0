package ingest

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
)

// Scheduler runs the ingester on a cron schedule.
type Scheduler struct {
	Ingester *Ingester
	Expr     *cronexpr.Expression
	Stop     chan struct{}

	logger *log.Logger
}

func NewScheduler(in *Ingester, cron string) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		Ingester: in,
		Expr:     expr,
		Stop:     make(chan struct{}),
		logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}, nil
}

// Start runs passes at each cron firing until Stop is closed.
func (s *Scheduler) Start() {
	go func() {
		for {
			next := s.Expr.Next(time.Now())
			if next.IsZero() {
				s.logger.Printf("cron expression yields no future runs, stopping")
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-s.Stop:
				timer.Stop()
				return
			case <-timer.C:
				stats, err := s.Ingester.Run(context.Background())
				if err != nil {
					s.logger.Printf("ingestion pass failed: %v", err)
					continue
				}
				s.logger.Printf("ingestion pass: %d seen, %d ingested, %d skipped, %d failed",
					stats.Seen, stats.Ingested, stats.Skipped, stats.Failed)
			}
		}
	}()
}
