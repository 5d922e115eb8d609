package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	router "github.com/dkeye/callbridge/internal/adapters/http"
	"github.com/dkeye/callbridge/internal/adapters/notify"
	"github.com/dkeye/callbridge/internal/adapters/store"
	"github.com/dkeye/callbridge/internal/adapters/ws"
	"github.com/dkeye/callbridge/internal/app/broker"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	return store.Open(ctx, store.Options{
		Driver:        cfg.Database.Driver,
		DSN:           cfg.Database.DSN,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
	})
}

func runMigrate(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
	return st.Close()
}

func runServe(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if err := config.Watch(env, func(c *config.Config) {
		zerolog.SetGlobalLevel(c.LogLevel())
	}); err != nil {
		log.Debug().Err(err).Msg("config watch disabled")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var notifier core.Notifier = core.NopNotifier{}
	if cfg.Redis.Addr != "" {
		rn, err := notify.NewRedis(ctx, notify.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, status events disabled")
		} else {
			defer rn.Close()
			notifier = rn
		}
	}

	b := broker.New(st, notifier)
	sockets := ws.NewController(b, ws.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteTimeout: cfg.WriteTimeout,
		SendBuffer:   cfg.SendBuffer,

		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(cfg, st, b, sockets),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("callbridge server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		b.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		// Sockets are hijacked, so the server does not wait for them. The
		// store must stay open until every call end is written.
		if derr := sockets.Drain(shutdownCtx); derr != nil {
			log.Error().Err(derr).Msg("sockets still open at shutdown")
			return errors.Join(err, derr)
		}
		if err != nil {
			return err
		}
		log.Info().Msg("Server exited gracefully")
		return nil
	})
	return g.Wait()
}
