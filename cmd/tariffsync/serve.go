package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tariffsync/internal/modkit"
	"tariffsync/internal/modkit/repokit"
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/metrics"
	phttp "tariffsync/internal/platform/net/http"
	"tariffsync/internal/platform/net/middleware"
	"tariffsync/internal/platform/tracing"
	opshttp "tariffsync/internal/services/ops/http"
	opsmod "tariffsync/internal/services/ops/module"
	propmod "tariffsync/internal/services/propagation/module"
	schedmod "tariffsync/internal/services/scheduler/module"
	tariffsmod "tariffsync/internal/services/tariffs/module"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the propagation worker and the ops server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.New())
		},
	}
}

func serve(ctx context.Context, root config.Conf) error {
	log := logger.Get()
	started := time.Now()

	shutdownTracing, err := tracing.Setup(tracing.FromConfig(root))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("trace flush failed")
		}
	}()

	st, err := openStore(ctx, root)
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := repokit.Guard(ctx, st); err != nil {
		return err
	}

	m := metrics.New()
	deps := modkit.FromStore(st, root, m)

	prop, err := propmod.New(ctx, deps)
	if err != nil {
		return err
	}
	defer prop.Close()

	tariffs, err := tariffsmod.New(deps, prop.Queue())
	if err != nil {
		return err
	}
	sched, err := schedmod.New(deps, tariffs.Cycle())
	if err != nil {
		return err
	}

	opsDeps := opshttp.Deps{
		StartedAt: started,
		Store:     st,
		Trigger:   sched.Scheduler(),
		Queue:     prop.Queue(),
		Query:     tariffs.Query(),
		Metrics:   m.Handler(),
	}
	if j := prop.Journal(); j != nil {
		opsDeps.Journal = j
	}
	if c := prop.Targets(); c != nil {
		opsDeps.Targets = c
	}

	srv := phttp.NewServer(opsAddr(root), func(mx *chi.Mux) { mx.Use(middleware.Defaults()...) })
	mounted := modkit.MountAll(srv.Router(), tariffs, prop, sched, opsmod.New(opsDeps))
	log.Info().Strs("mounted", mounted).Msg("modules ready")

	g, gctx := errgroup.WithContext(ctx)

	// the queue outlives the scheduler so the last cycle's batch is still admitted
	queueCtx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
	defer stopQueue()

	g.Go(func() error { return prop.Queue().Run(queueCtx) })
	g.Go(func() error {
		defer stopQueue()
		return sched.Scheduler().Run(gctx)
	})
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	log.Info().Err(err).Msg("tariffsync stopped")
	return err
}

func opsAddr(root config.Conf) string {
	p := root.Prefix("OPS_").MayString("PORT", ":4000")
	if !strings.Contains(p, ":") {
		p = ":" + p
	}
	return p
}
