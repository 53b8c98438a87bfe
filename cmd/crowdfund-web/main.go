// Package main starts the local crowdfunding web shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/apiclient"
	"github.com/goliatone/go-crowdfund/logger"
	"github.com/goliatone/go-crowdfund/metrics"
	"github.com/goliatone/go-crowdfund/platform"
	"github.com/goliatone/go-crowdfund/repository"
	"github.com/goliatone/go-crowdfund/resource"
	"github.com/goliatone/go-crowdfund/web"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "crowdfund-web: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	opts, err := crowdfund.LoadOptions(ctx)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: opts.LogLevel, Pretty: opts.LogPretty})

	repo, err := repository.Open(ctx, opts.SessionDSN)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer repo.Close()

	activity := metrics.ActivityCounter{Next: repo.Activity()}

	// the session needs the auth API and the API client reads the session
	// token, so the client resolves it lazily.
	var session *crowdfund.SessionStore
	tokens := apiclient.TokenFunc(func() string { return session.Token() })

	client, err := apiclient.NewFromConfig(opts, tokens,
		apiclient.WithIdempotencyKeys(opts.Idempotency),
		apiclient.WithLogger(log.Named("api")),
	)
	if err != nil {
		return err
	}
	authAPI := apiclient.NewAuthAPI(client)

	stores := platform.NewStores(client,
		platform.WithPageSize(opts.GetDefaultPageSize()),
		platform.WithPhoneRegion(opts.PhoneRegion),
		platform.WithLogger(log.Named("stores")),
		platform.WithStoreOptions(
			resource.WithObserver(metrics.StoreObserver{}),
			resource.WithLogger(log.Named("resource")),
		),
	)

	session = crowdfund.NewSessionStore(authAPI,
		crowdfund.WithSessionLogger(log.Named("session")),
		crowdfund.WithSessionPersistence(repo.Sessions()),
		crowdfund.WithSessionActivitySink(activity),
		crowdfund.WithSessionDebug(opts.Debug),
		crowdfund.WithLogoutHook(stores.Reset),
	)
	if err := session.Restore(ctx); err != nil {
		log.Warn("unable to restore session", "error", err)
	}

	notices := crowdfund.NewNoticeQueue(20)
	reactor := crowdfund.NewGuardReactor(session, notices,
		crowdfund.WithReactorLogger(log.Named("guard")),
		crowdfund.WithReactorActivitySink(activity),
	)

	server := web.New(web.Deps{
		Session:    session,
		OTP:        authAPI,
		Stores:     stores,
		Notices:    notices,
		Reactor:    reactor,
		Config:     opts,
		Logger:     log.Named("web"),
		OnDecision: metrics.ObserveDecision,
	},
		web.WithCSRF(opts.CSRF),
		web.WithMetrics(opts.Metrics),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(opts.Listen)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down web shell")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
