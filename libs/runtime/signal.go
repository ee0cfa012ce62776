package runtime

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalError is the cancellation cause of a context ended by a shutdown
// signal.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "received signal " + e.Signal.String()
}

// SignalContext returns a context cancelled by the first SIGINT or SIGTERM,
// with a *SignalError as its cause. Only the first signal is caught, so a
// second one kills a process stuck in shutdown.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return watchSignals(context.Background(), logger, ch, func() { signal.Stop(ch) })
}

func watchSignals(parent context.Context, logger *slog.Logger, sigs <-chan os.Signal, release func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		defer release()
		select {
		case sig := <-sigs:
			logger.Info("shutdown signal received", "signal", sig.String())
			cancel(&SignalError{Signal: sig})
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
