package eventloop

import (
	"context"
)

// Await runs op on its own goroutine and posts then(value, err) back to the
// loop once op returns. This is the loop's only suspension point: the caller's
// turn ends immediately and then runs in a later turn. If the loop has stopped
// by the time op returns, the continuation is dropped. Bookkeeping that must
// happen for every call belongs in op.
func Await[T any](ctx context.Context, l *Loop, op func(ctx context.Context) (T, error), then func(T, error)) {
	go func() {
		v, err := op(ctx)
		l.Post(func() { then(v, err) })
	}()
}
