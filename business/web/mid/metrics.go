package mid

import (
	"context"
	"expvar"
	"net/http"

	"github.com/caiorlm/logichain/foundation/web"
)

var m = struct {
	req *expvar.Int
	err *expvar.Int
}{
	req: expvar.NewInt("requests"),
	err: expvar.NewInt("errors"),
}

// Metrics updates program counters using the expvar package, the same
// zero-dependency approach the teacher exposes under /debug/vars.
func Metrics() web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			m.req.Add(1)
			if err != nil {
				m.err.Add(1)
			}

			return err
		}
		return h
	}
	return mw
}
