package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdutil "github.com/microsoft/cdpsession/internal/commands"
	"github.com/microsoft/cdpsession/internal/telemetry"
	"github.com/microsoft/cdpsession/pkg/logger"
	"github.com/microsoft/cdpsession/pkg/osutil"
	"github.com/microsoft/cdpsession/pkg/resiliency"
)

const (
	errCommandError = 1
	errSetup        = 2
	errPanic        = 3

	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	log := logger.New("cdpsession").WithName("cdpsession")
	defer func() {
		panicErr := resiliency.RecoverPanic(recover(), "main", log.Logger)
		if panicErr != nil {
			os.Stderr.WriteString(panicErr.Error() + string(osutil.LineSep()))
			log.Flush()
			os.Exit(errPanic)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetrySystem := telemetry.NewTelemetrySystem("cdpsession")

	root, err := cmdutil.NewRootCommand(log)
	if err != nil {
		cmdutil.ErrorExit(log, err, errSetup)
	}

	err = root.ExecuteContext(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	_ = telemetrySystem.Shutdown(shutdownCtx)
	cancelShutdown()

	if err != nil {
		cmdutil.ErrorExit(log, err, errCommandError)
	} else {
		log.Flush()
	}
}
