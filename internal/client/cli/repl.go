package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Import(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
	ClearCache(ctx context.Context) error
}

const helpText = `Available commands:
  import <path>                 add an image and upload it
  (l)ist [all]                  list images; "all" includes queued deletions
  show <id>                     show the state of one image
  export <id> <size> <file>     write thumbnail, medium or large to a file
  delete <id>                   delete an image locally and remotely
  retry <id>                    run an upload attempt now
  sync                          process queued deletions and failed uploads
  status                        connectivity, device and queue summary
  logout                        forget the device credential
  clearcache                    drop purgeable cached images
  exit | quit                   leave the program`

// runREPL reads a line from scanner, parses the first token as the command
// and dispatches to a. The loop exits on scanner EOF or on "exit"/"quit".
// Command errors are printed and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("imagesync %s > ", statusFn()))
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
		case "import":
			err = a.Import(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "export":
			err = a.Export(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "retry":
			err = a.Retry(ctx, args)
		case "sync":
			err = a.Sync(ctx)
		case "status":
			err = a.Status(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "clearcache":
			err = a.ClearCache(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
