package main

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/akashdube/PartsUL/pkg/config"
	"github.com/akashdube/PartsUL/pkg/microservice"
	"github.com/akashdube/PartsUL/pkg/resilience"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// app holds the process-wide clients built from configuration.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	cache     *cache.ResilientCache
	codec     cache.Codec
	store     catalog.Store
	announcer catalog.Announcer
	ready     map[string]microservice.ReadinessCheck

	firestoreClient *firestore.Client
	pubsubClient    *pubsub.Client
	closers         []func() error
}

type configLoader func() (*config.Config, error)

// newApp loads the config, builds the logger and connects every backend.
func newApp(ctx context.Context, load configLoader, withAnnouncer bool) (*app, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logger, err := microservice.NewLogger(cfg.BaseConfig, os.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		announcer: catalog.NopAnnouncer{},
		ready:     make(map[string]microservice.ReadinessCheck),
	}
	if err := a.connect(ctx, withAnnouncer); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) clientOptions() []option.ClientOption {
	if a.cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(a.cfg.CredentialsFile)}
}

func (a *app) firestore(ctx context.Context) (*firestore.Client, error) {
	if a.firestoreClient != nil {
		return a.firestoreClient, nil
	}
	client, err := firestore.NewClient(ctx, a.cfg.ProjectID, a.clientOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create firestore client")
	}
	a.firestoreClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) connect(ctx context.Context, withAnnouncer bool) error {
	codec, err := cache.CodecByName(a.cfg.Cache.Codec)
	if err != nil {
		return err
	}
	a.codec = codec

	backend, isTransient, err := a.cacheBackend(ctx)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, backend.Close)
	a.cache, err = cache.NewResilientCache(backend, a.cfg.RetryPolicy(isTransient), a.logger)
	if err != nil {
		return err
	}

	switch a.cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := a.firestore(ctx)
		if err != nil {
			return err
		}
		if a.store, err = catalog.NewFirestoreStore(client, a.logger); err != nil {
			return err
		}
	default:
		a.logger.Warn().Msg("Using the in-memory store; data is lost on exit.")
		a.store = catalog.NewInMemoryStore()
	}

	if withAnnouncer && a.cfg.Announcements.Topic != "" {
		client, err := pubsub.NewClient(ctx, a.cfg.ProjectID, a.clientOptions()...)
		if err != nil {
			return errors.Wrap(err, "failed to create pubsub client")
		}
		a.pubsubClient = client
		a.closers = append(a.closers, client.Close)

		announcer, err := catalog.NewPubsubAnnouncer(ctx, client, a.cfg.Announcements.Topic, a.logger)
		if err != nil {
			return err
		}
		a.announcer = announcer
	}
	return nil
}

// cacheBackend builds the configured backend and the transient-fault detector matching its transport.
func (a *app) cacheBackend(ctx context.Context) (cache.Cache, func(error) bool, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendRedis:
		c, err := cache.NewRedisCache(ctx, &cache.RedisConfig{
			Addr:      a.cfg.Cache.Redis.Addr,
			Password:  a.cfg.Cache.Redis.Password,
			DB:        a.cfg.Cache.Redis.DB,
			KeyPrefix: a.cfg.Cache.Redis.Prefix,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.ready["redis"] = c.Ping
		return c, resilience.IsTransientRedisError, nil
	case config.BackendFirestore:
		client, err := a.firestore(ctx)
		if err != nil {
			return nil, nil, err
		}
		c, err := cache.NewFirestoreCache(client, &cache.FirestoreConfig{CollectionName: a.cfg.Cache.Firestore.Collection}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return c, resilience.IsTransientGRPCError, nil
	default:
		c, err := cache.NewInMemoryCache(cache.InMemoryConfig{MaxEntries: a.cfg.Cache.Memory.MaxEntries})
		if err != nil {
			return nil, nil, err
		}
		return c, resilience.IsNetworkError, nil
	}
}

// Close releases clients in reverse order of creation.
func (a *app) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	return errs
}
