package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.println("=== Register ===")
	c.println()

	username, err := c.readInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	c.println()
	c.println("Registering...")

	userID, err := c.authService.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.println()
	c.println("✓ Registration successful!")
	c.printf("User ID: %s\n", userID)
	c.println()
	c.println("Run 'chatkeeper login' to authenticate.")
	return nil
}
