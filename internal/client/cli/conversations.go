package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runConversations(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return fmt.Errorf("usage: chatkeeper conversations list")
	}

	convs, err := c.dataService.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(convs) == 0 {
		c.println("No conversations.")
		return nil
	}

	c.printf("%-36s  %-30s  %-10s  %-5s  %s\n", "ID", "TITLE", "SOURCE", "MSGS", "UPDATED")
	for _, conv := range convs {
		title := conv.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		marker := ""
		if conv.Favorite {
			marker = " ★"
		}
		if conv.Dirty {
			marker += " *"
		}
		c.printf("%-36s  %-30s  %-10s  %-5d  %s%s\n",
			conv.ID, title, conv.Source, conv.MessageCount,
			conv.UpdatedAt.Format(time.RFC3339), marker)
	}

	c.println()
	c.printf("%d conversation(s)\n", len(convs))
	return nil
}
