// Package cli provides the interactive imagesync command-line client.
//
// It reads commands from stdin and drives the services held by
// app.Container: importing images, listing and inspecting them, exporting a
// size to a file, deleting, retrying failed uploads and reporting the
// connectivity and queue state. The prompt shows whether the backend is
// currently reachable.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
