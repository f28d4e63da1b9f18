package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/provider"
	"github.com/iudanet/chatkeeper/internal/client/sync"
)

// newEngine собирает движок синхронизации поверх REST провайдера.
// При connect=true провайдеру требуется действующая сессия.
func (c *Cli) newEngine(ctx context.Context, connect bool) (*sync.Engine, func(), error) {
	prov := provider.NewRESTProvider()
	disconnect := func() {}

	if connect {
		session, err := c.authService.CurrentSession(ctx)
		if err != nil {
			return nil, nil, err
		}

		baseURL := session.ServerURL
		if baseURL == "" {
			baseURL = c.serverURL
		}
		if err := prov.Connect(ctx, sync.ProviderConfig{
			BaseURL: baseURL,
			Token:   session.AccessToken,
		}); err != nil {
			return nil, nil, fmt.Errorf("failed to connect: %w", err)
		}
		disconnect = func() { _ = prov.Disconnect(context.WithoutCancel(ctx)) }
	}

	engine := sync.NewEngine(prov, c.store, sync.Config{}, c.logger)
	return engine, disconnect, nil
}

func (c *Cli) runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	pullOnly := fs.Bool("pull-only", false, "Only pull remote changes")
	pushOnly := fs.Bool("push-only", false, "Only push local changes")
	auto := fs.Bool("auto", false, "Keep syncing periodically until interrupted")
	interval := fs.Duration("interval", 5*time.Minute, "Auto sync interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pullOnly && *pushOnly {
		return fmt.Errorf("--pull-only and --push-only are mutually exclusive")
	}

	engine, disconnect, err := c.newEngine(ctx, true)
	if err != nil {
		return err
	}
	defer disconnect()

	if *auto {
		return c.runAutoSync(ctx, engine, *interval)
	}

	c.println("=== Synchronization ===")
	c.println()

	var result *sync.Result
	switch {
	case *pullOnly:
		result, err = engine.PullOnly(ctx)
	case *pushOnly:
		result, err = engine.PushOnly(ctx)
	default:
		result, err = engine.Sync(ctx)
	}
	if err != nil {
		if result != nil {
			// Push не прошел, но pull и merge применились
			c.printResult(result)
			c.println()
		}
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.println("✓ Synchronization completed!")
	c.println()
	c.printResult(result)
	if result.Conflicts > 0 {
		c.println()
		c.println("Run 'chatkeeper conflicts list' to review conflicts.")
	}
	return nil
}

// runAutoSync запускает менеджер с периодической синхронизацией
// и печатает события до отмены контекста
func (c *Cli) runAutoSync(ctx context.Context, engine *sync.Engine, interval time.Duration) error {
	manager := sync.NewManager(engine, sync.ManagerConfig{
		SyncInterval: interval,
		AutoSync:     true,
	}, c.logger)
	defer manager.Close()

	manager.Subscribe(func(event sync.Event) {
		switch event.Type {
		case sync.EventSyncCompleted:
			if event.Result != nil {
				c.printf("[%s] sync completed: pulled %d, pushed %d, conflicts %d\n",
					event.Timestamp.Format(time.TimeOnly),
					event.Result.Pulled, event.Result.Pushed, event.Result.Conflicts)
			}
		case sync.EventSyncFailed:
			c.printf("[%s] sync failed: %v\n",
				event.Timestamp.Format(time.TimeOnly), event.Err)
		case sync.EventRetryScheduled:
			c.printf("[%s] retry in %s\n",
				event.Timestamp.Format(time.TimeOnly), event.RetryIn)
		}
	})

	c.printf("Auto sync every %s. Press Ctrl+C to stop.\n", interval)

	// Первый цикл сразу, не дожидаясь тикера
	if _, err := manager.Sync(ctx); err != nil {
		c.printf("initial sync failed: %v\n", err)
	}

	manager.Start(ctx)
	<-ctx.Done()
	return nil
}

func (c *Cli) printResult(result *sync.Result) {
	c.printf("Pulled from server: %d record(s)\n", result.Pulled)
	c.printf("Applied locally:    %d record(s)\n", result.Applied)
	c.printf("Pushed to server:   %d record(s)\n", result.Pushed)
	if result.Conflicts > 0 {
		c.printf("Conflicts:          %d\n", result.Conflicts)
	}
	if result.Skipped > 0 {
		c.printf("Skipped (invalid):  %d\n", result.Skipped)
	}
}
