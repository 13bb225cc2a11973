package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/client"
	"github.com/example/catering-cart/internal/logging"
	"github.com/example/catering-cart/internal/persist"
	"github.com/example/catering-cart/internal/session"
)

const redisKeyPrefix = "cartctl:"

// runtime is everything one invocation needs
type runtime struct {
	store   *persist.Store
	token   *auth.SessionToken
	client  *client.Client
	session *session.Session
	logger  *zap.Logger
	closers []func()
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// openRuntime wires storage, token, backend client and an unstarted session
func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	level := opts.cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, opts.cfg.LogDev)
	if err != nil {
		return nil, err
	}
	rt := &runtime{logger: logger}
	rt.closers = append(rt.closers, func() { _ = logger.Sync() })

	backend, err := openBackend(ctx, opts, rt)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = persist.NewStore(backend, logger.Named("cart.store"))
	rt.token = auth.NewSessionToken(rt.store.LoadToken(ctx))

	rt.client, err = client.New(opts.Backend, rt.token,
		client.WithTimeout(opts.Timeout),
		client.WithLogger(logger.Named("cart.client")))
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.session = session.New(rt.store, rt.client, rt.token,
		session.WithQuietPeriod(opts.QuietPeriod),
		session.WithLogger(logger.Named("cart.session")))
	rt.closers = append(rt.closers, rt.session.Close)
	return rt, nil
}

func openBackend(ctx context.Context, opts *RootOptions, rt *runtime) (persist.Backend, error) {
	if opts.RedisAddr != "" {
		rdb, err := persist.ConnectRedis(ctx, opts.RedisAddr, opts.cfg.RedisPassword, opts.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		return persist.NewRedisBackend(rdb, redisKeyPrefix, opts.cfg.RedisTTL), nil
	}
	if opts.StateDir == "" {
		return nil, fmt.Errorf("no state directory configured")
	}
	return persist.NewFileBackend(opts.StateDir)
}

// withSession runs fn as one page load: start, apply, flush, close.
// A failed flush is reported as a warning; the local change is kept.
func withSession(ctx context.Context, opts *RootOptions, out *OutputFormatter, fn func(*session.Session) error) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.session.Start(ctx); err != nil {
		return err
	}
	if err := fn(rt.session); err != nil {
		return err
	}
	if err := rt.session.Flush(ctx); err != nil {
		out.Warn("draft order sync failed: %v", err)
	}
	return out.Success(newCartView(rt.session))
}
