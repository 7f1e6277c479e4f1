// Package api implements the HTTP surface of the FormBridge ingestion
// service.
package api

import (
	"context"
	"strings"
	"time"

	"formbridge/internal/config"
	"formbridge/internal/dispatch"
	"formbridge/internal/mailer"
	"formbridge/internal/secureconfig"
	"formbridge/internal/signature"
	"formbridge/internal/store"
	"formbridge/internal/tenantcfg"
)

// SecretHMAC is the secure-store name of the inbound signing secret.
const SecretHMAC = "formbridge/hmac_secret"

type Server struct {
	Cfg      config.Config
	Store    store.Store
	Secrets  *secureconfig.Resolver
	Tenants  *tenantcfg.Service
	Verifier *signature.Verifier
	Enq      *dispatch.Enqueuer
	Queue    dispatch.Queue
	Mail     mailer.Mailer
	Broker   EventBroker

	limiter *ipLimiter
}

// NewServer wires the service. With no DATABASE_URL it uses the
// in-memory store; with no REDIS_URL the queue, broker, and secure
// store all fall back to process-local implementations.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = sp.Migrate(ctx)
		cancel()
		if err != nil {
			return nil, err
		}
		s = sp
	}

	var src secureconfig.Source
	var queue dispatch.Queue
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rs, err := secureconfig.NewRedisSource(cfg.RedisURL); err == nil {
			src = rs
		}
		if rq, err := dispatch.NewRedisQueue(cfg.RedisURL); err == nil {
			queue = rq
		}
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		}
	}
	if queue == nil {
		queue = dispatch.NewMemoryQueue(0)
	}
	if broker == nil {
		broker = NewBroker()
	}

	resolver := secureconfig.NewResolver(src)
	srv := &Server{
		Cfg:      cfg,
		Store:    s,
		Secrets:  resolver,
		Tenants:  tenantcfg.NewService(resolver, s),
		Verifier: signature.NewVerifier(cfg.HMAC.Enabled, cfg.MaxSkew()),
		Enq:      dispatch.NewEnqueuer(queue),
		Queue:    queue,
		Mail:     mailer.NewFromEnv(),
		Broker:   broker,
		limiter:  newIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	return srv, nil
}

// NewDispatchWorker creates the background webhook delivery worker.
func (s *Server) NewDispatchWorker() *dispatch.Worker {
	engine := dispatch.NewEngine()
	engine.Timeout = s.Cfg.WebhookTimeout()
	w := dispatch.NewWorker(s.Queue, engine)
	if s.Cfg.Webhook.MaxAttempts > 0 {
		w.MaxAttempts = s.Cfg.Webhook.MaxAttempts
	}
	if s.Cfg.Webhook.BatchSize > 0 {
		w.BatchSize = s.Cfg.Webhook.BatchSize
	}
	return w
}
