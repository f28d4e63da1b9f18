package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
)

func (c *Cli) runConflicts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chatkeeper conflicts list | conflicts resolve ID CHOICE")
	}

	switch args[0] {
	case "list":
		return c.listConflicts(ctx)
	case "resolve":
		return c.resolveConflict(ctx, args[1:])
	default:
		return fmt.Errorf("unknown conflicts subcommand: %s", args[0])
	}
}

func (c *Cli) listConflicts(ctx context.Context) error {
	conflicts, err := c.store.Conflicts().Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		c.println("✓ No pending conflicts.")
		return nil
	}

	for _, conflict := range conflicts {
		c.printf("Conflict %s\n", conflict.ID)
		c.printf("  Entity:   %s %s\n", conflict.EntityType, conflict.EntityID)
		c.printf("  Detected: %s\n", conflict.CreatedAt.Format(time.RFC3339))
		c.printf("  Fields:   %s\n", strings.Join(conflict.ConflictFields, ", "))
		for _, field := range conflict.ConflictFields {
			c.printf("    %-12s local: %v\n", field, conflict.LocalVersion[field])
			c.printf("    %-12s remote: %v\n", "", conflict.RemoteVersion[field])
		}
		c.println()
	}

	c.printf("%d conflict(s) pending\n", len(conflicts))
	c.println()
	c.println("Resolve with: chatkeeper conflicts resolve ID local|remote")
	return nil
}

func (c *Cli) resolveConflict(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: chatkeeper conflicts resolve ID local|remote")
	}
	conflictID := args[0]

	var resolution models.Resolution
	switch args[1] {
	case "local":
		resolution = models.ResolutionLocal
	case "remote":
		resolution = models.ResolutionRemote
	default:
		return fmt.Errorf("invalid choice %q: expected local or remote", args[1])
	}

	engine, disconnect, err := c.newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer disconnect()

	if err := engine.ResolveConflict(ctx, conflictID, resolution, nil); err != nil {
		return err
	}

	c.printf("✓ Conflict %s resolved (%s)\n", conflictID, resolution)
	if resolution == models.ResolutionLocal {
		c.println("The local version will be pushed on the next sync.")
	}
	return nil
}
