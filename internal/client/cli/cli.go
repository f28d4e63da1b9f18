package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/iudanet/chatkeeper/internal/client/auth"
	"github.com/iudanet/chatkeeper/internal/client/data"
	"github.com/iudanet/chatkeeper/internal/client/storage"
)

// Cli связывает команды клиента с сервисами
type Cli struct {
	authService *auth.Service
	dataService data.Service
	store       storage.Store
	logger      *slog.Logger
	out         io.Writer
	in          io.Reader
	serverURL   string
}

// New создает CLI
func New(authService *auth.Service, dataService data.Service, store storage.Store, serverURL string, logger *slog.Logger) *Cli {
	return &Cli{
		authService: authService,
		dataService: dataService,
		store:       store,
		logger:      logger,
		out:         os.Stdout,
		in:          os.Stdin,
		serverURL:   serverURL,
	}
}

func (c *Cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Cli) println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// readInput читает строку из stdin
func (c *Cli) readInput(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	reader := bufio.NewReader(c.in)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readPassword читает пароль без отображения на экране.
// Когда stdin не терминал (тесты, пайпы), читает обычную строку.
func (c *Cli) readPassword(prompt string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, prompt)
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}
	return c.readInput(prompt)
}

// PrintUsage выводит справку по командам
func PrintUsage() {
	fmt.Println("ChatKeeper Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatkeeper [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version            Show version information")
	fmt.Println("  --server URL         Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH            Path to local database (default: chatkeeper-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register                     Register new user")
	fmt.Println("  login                        Login to server")
	fmt.Println("  logout                       Logout from server")
	fmt.Println("  status                       Show sync and authentication status")
	fmt.Println("  conversations list           List local conversations")
	fmt.Println("  conflicts list               List pending sync conflicts")
	fmt.Println("  conflicts resolve ID CHOICE  Resolve a conflict (local or remote)")
	fmt.Println("  sync [--pull-only] [--push-only] [--auto] [--interval 5m]")
	fmt.Println("                               Synchronize local data with server")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  chatkeeper register")
	fmt.Println("  chatkeeper login")
	fmt.Println("  chatkeeper sync")
	fmt.Println("  chatkeeper sync --auto --interval 2m")
	fmt.Println("  chatkeeper conversations list")
	fmt.Println("  chatkeeper conflicts resolve b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5 local")
	fmt.Println("  chatkeeper --server https://example.com login")
}
