package mid

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/caiorlm/logichain/foundation/web"
)

// Panics recovers from panics and converts them into errors so the request
// is logged and a 500 returned instead of crashing the process.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v: %s", rec, string(debug.Stack()))
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
