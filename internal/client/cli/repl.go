package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// errQuit asks the REPL to stop after a command.
var errQuit = errors.New("quit")

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Mood(ctx context.Context, args []string) error
	Days(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Keys(ctx context.Context) error
	Reset(ctx context.Context) error
}

const helpText = "Available commands: add, (l)ist [day], mood [day], days, delete <id>, clear <time>, status, keys, reset, exit"

// runREPL starts a simple read–eval–print loop for the moodlog CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF, when ctx is done, when
// the user types "exit" or "quit", or when a command returns errQuit.
//
// Other errors returned by command handlers are ignored here; handlers
// report their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("moodlog %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "a", "add":
			err = a.Add(ctx)

		case "l", "list":
			err = a.List(ctx, args)

		case "mood":
			err = a.Mood(ctx, args)

		case "days":
			err = a.Days(ctx)

		case "delete", "rm":
			err = a.Delete(ctx, args)

		case "clear":
			err = a.Clear(ctx, args)

		case "status":
			err = a.Status(ctx)

		case "keys":
			err = a.Keys(ctx)

		case "reset":
			err = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if errors.Is(err, errQuit) {
			printlnFn("Bye!")
			return
		}
	}
}
