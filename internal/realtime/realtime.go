// Package realtime assembles the presence and notification fan-out layer.
package realtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"collabhub/internal/platform/config"
	ratelimit "collabhub/internal/ratelimit/middleware"
	platformmetrics "collabhub/internal/platform/metrics"
	"collabhub/internal/realtime/consumer"
	"collabhub/internal/realtime/gateway"
	"collabhub/internal/realtime/handler"
	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/ports"
	"collabhub/internal/realtime/service/dispatch"
	"collabhub/internal/realtime/service/lifecycle"
	"collabhub/internal/realtime/service/targeting"
	"collabhub/internal/realtime/store/presence"
	auth "collabhub/pkg/platform/middleware/auth"
)

// Deps are the collaborators the realtime layer is built from. Directory,
// Logger, ConnectLimiter and both metric sets are optional. Validator
// authenticates websocket users; ProducerValidator authenticates the
// internal routes and must not accept end-user tokens.
type Deps struct {
	Presence          ports.PresenceStore
	Members           ports.MembershipResolver
	Directory         ports.Directory
	Validator         auth.JWTValidator
	ProducerValidator auth.JWTValidator
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
	GatewayMetrics    *platformmetrics.Metrics
	Config            config.PresenceConfig
	AllowedOrigins    []string
	ConnectLimiter    *ratelimit.Middleware
}

// Service holds the wired components.
type Service struct {
	Lifecycle  *lifecycle.Manager
	Hub        *gateway.Hub
	Dispatcher *dispatch.Dispatcher
	Engine     *targeting.Engine
	Handler    *handler.Handler

	presence ports.PresenceStore
	limiter  *ratelimit.Middleware
	cfg      config.PresenceConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(deps Deps) (*Service, error) {
	if deps.Presence == nil || deps.Members == nil {
		return nil, errors.New("presence store and membership resolver are required")
	}
	if deps.Validator == nil || deps.ProducerValidator == nil {
		return nil, errors.New("user and producer token validators are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	manager, err := lifecycle.New(deps.Presence,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(deps.Metrics),
	)
	if err != nil {
		return nil, err
	}

	hubOpts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithAllowedOrigins(deps.AllowedOrigins),
	}
	if deps.GatewayMetrics != nil {
		hubOpts = append(hubOpts, gateway.WithMetrics(deps.GatewayMetrics))
	}
	hub, err := gateway.New(manager, deps.Validator, hubOpts...)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New(hub,
		dispatch.WithConcurrency(deps.Config.DispatchConcurrency),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(deps.Metrics),
	)
	if err != nil {
		return nil, err
	}

	engineOpts := []targeting.Option{
		targeting.WithLogger(logger),
		targeting.WithMetrics(deps.Metrics),
	}
	if deps.Directory != nil {
		engineOpts = append(engineOpts, targeting.WithDirectory(deps.Directory))
	}
	engine, err := targeting.New(deps.Presence, deps.Members, dispatcher, engineOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		Lifecycle:  manager,
		Hub:        hub,
		Dispatcher: dispatcher,
		Engine:     engine,
		Handler:    handler.New(engine, deps.Presence, deps.ProducerValidator, logger),
		presence:   deps.Presence,
		limiter:    deps.ConnectLimiter,
		cfg:        deps.Config,
		logger:     logger,
		metrics:    deps.Metrics,
	}, nil
}

// Register mounts the websocket endpoint and the internal routes.
func (s *Service) Register(r chi.Router) {
	r.Handle("/ws", s.limiter.LimitConnects(s.Hub))
	s.Handler.Register(r)
}

// NewConsumer builds a trigger topic consumer publishing through the engine.
func (s *Service) NewConsumer(fetcher consumer.Fetcher) (*consumer.Consumer, error) {
	return consumer.New(fetcher, s.Engine, s.logger)
}

// Run drives lease refresh and the expiry sweeper until ctx is cancelled.
// Intervals of zero disable the corresponding loop.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.cfg.RefreshInterval > 0 {
		g.Go(func() error {
			return s.Lifecycle.Run(ctx, s.cfg.RefreshInterval)
		})
	}
	if s.cfg.SweepInterval > 0 {
		g.Go(func() error {
			return presence.StartSweeper(ctx, s.presence, s.cfg.SweepInterval, s.logger, s.metrics)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown closes every socket, running presence cleanup for each.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.Hub.Shutdown(ctx)
}
