/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tracklog/apiserver/config"
	"github.com/tracklog/apiserver/internal/logger"
	"github.com/tracklog/apiserver/internal/mq"
	"github.com/tracklog/apiserver/internal/worker"
)

// workerCmd runs the retention scheduler and, with a broker, its consumer.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs background retention jobs",
	Long: `Runs the retention scheduler on RETENTION_SCHEDULE. With MQ_BACKEND set the
scheduler publishes prune requests and this process also consumes them;
otherwise pruning runs in-process. Usage:

	tracklog worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logger.New(cfg)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svc, dbConn, err := newRetentionService(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		queue, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}

		var publisher worker.PrunePublisher
		if queue != nil {
			defer queue.Close()
			publisher = queue
		}

		scheduler, err := worker.NewScheduler(cfg.Retention.Schedule, cfg.Retention.MaxAge, svc, publisher, log)
		if err != nil {
			return err
		}

		var (
			wg   sync.WaitGroup
			errs = make(chan error, 2)
		)
		run := func(fn func(context.Context) error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
					errs <- err
					cancel()
				}
			}()
		}

		run(scheduler.Run)
		if queue != nil {
			run(worker.NewConsumer(queue, svc, log).Run)
		}

		wg.Wait()
		close(errs)
		return errors.Join(drain(errs)...)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func drain(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}
