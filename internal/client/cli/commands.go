package cli

import (
	"context"
	"fmt"
	"os"
)

// Run выполняет команду, завершая процесс при ошибке
func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error
	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "conversations":
		err = c.runConversations(ctx, args)
	case "conflicts":
		err = c.runConflicts(ctx, args)
	case "sync":
		err = c.runSync(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
