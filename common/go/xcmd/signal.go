package xcmd

import (
	"context"
	"os"
	"os/signal"
)

// Notify relays the given signals to the returned channel until the context
// is canceled, after which the relay is stopped and the channel is closed.
//
// Handlers are installed by the time Notify returns.
func Notify(ctx context.Context, size int, signals ...os.Signal) <-chan os.Signal {
	ch := make(chan os.Signal, size)
	signal.Notify(ch, signals...)

	out := make(chan os.Signal, size)
	go func() {
		defer close(out)
		defer signal.Stop(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ch:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
