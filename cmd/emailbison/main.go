// Command emailbison creates and manages EmailBison campaigns.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// Schedules and date ranges name IANA zones; embed the database so
	// minimal containers resolve them too.
	_ "time/tzdata"

	"github.com/randalmurphal/emailbison/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
