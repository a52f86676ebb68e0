package reconcile

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(ProvideConfig),
	fx.Provide(NewLock),
	fx.Provide(New),
	fx.Invoke(startWorker),
)

func startWorker(lc fx.Lifecycle, cfg Config, w *Worker) {
	if !cfg.Enabled {
		return
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go w.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
