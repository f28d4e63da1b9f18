package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.println("=== Status ===")
	c.println()

	isAuth, err := c.authService.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if !isAuth {
		c.println("Authentication: not authenticated")
		c.println()
		c.println("Run 'chatkeeper login' to authenticate.")
	} else {
		c.println("Authentication: authenticated")
	}

	state, err := c.store.State().GetSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync state: %w", err)
	}

	c.println()
	c.printf("Sync status:    %s\n", state.Status)
	if state.LastPullAt != nil {
		c.printf("Last pull:      %s\n", state.LastPullAt.Format(time.RFC3339))
	}
	if state.LastPushAt != nil {
		c.printf("Last push:      %s\n", state.LastPushAt.Format(time.RFC3339))
	}
	if state.LastError != "" {
		c.printf("Last error:     %s\n", state.LastError)
	}
	if state.PendingConflicts > 0 {
		c.printf("Conflicts:      %d pending\n", state.PendingConflicts)
		c.println()
		c.println("Run 'chatkeeper conflicts list' to review them.")
	}

	// Количество записей, ожидающих отправки
	dirtyConvs, err := c.store.Conversations().GetDirty(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending conversations: %w", err)
	}
	dirtyMsgs, err := c.store.Messages().GetDirty(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending messages: %w", err)
	}

	pending := len(dirtyConvs) + len(dirtyMsgs)
	c.println()
	if pending > 0 {
		c.printf("Pending sync:   %d record(s) waiting to be pushed\n", pending)
		c.println("Run 'chatkeeper sync' to synchronize with server.")
	} else {
		c.println("✓ All local changes synchronized")
	}

	return nil
}
