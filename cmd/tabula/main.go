/*
Tabula keeps a table of short notes in a database, using a tabula Session to
store them.

Usage:

	tabula [flags] <command> [command flags] [args]

The commands are:

	ddl
		Print the CREATE TABLE statement for the notes table.
	add TEXT...
		Add a note and print its ID.
	list
		List the notes, pinned ones first and then oldest first.
	rm ID
		Remove the note with the given ID.
	config
		Print the configuration in effect.

The global flags are:

	-c, --config PATH
		Load the configuration from the given file. The file must be in JSON or
		YAML format. If not given, the built-in defaults are used.

	--dsn DSN
		Open the database at DSN instead of the one in the configuration.

	--metrics
		Print the statement, transaction, and connection metrics of the
		session to stderr once the command completes.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitPanic     = 2
	exitInterrupt = 3
)

var exitCode int

func main() {
	ctx, cancelMainContext := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer func() {
		signal.Stop(signalChan)
		cancelMainContext()
	}()
	// listen for signals
	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			cancelMainContext()
		case <-ctx.Done():
		}

		<-signalChan // second signal, hard exit
		os.Exit(exitInterrupt)
	}()

	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		if errors.Is(err, context.Canceled) {
			exitCode = exitInterrupt
		} else {
			exitCode = exitError
		}
		return
	}
	exitCode = exitSuccess
}
