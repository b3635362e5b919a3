package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/caiorlm/logichain/business/web/errs"
	"github.com/caiorlm/logichain/foundation/web"
	"github.com/caiorlm/logichain/internal/validate"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain, logging every one
// and translating it into a web.Respond-compatible response (a shutdown
// error is passed on instead).
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := handler(ctx, w, r); err != nil {
				v, verr := web.GetValues(ctx)
				if verr != nil {
					return web.NewShutdownError("web value missing from context")
				}

				log.Errorw("request error", "traceid", v.TraceID, "ERROR", err)

				var fe validate.FieldErrors
				if errors.As(err, &fe) {
					resp := errs.Response{Error: "field validation error", Fields: fieldMap(fe)}
					return web.Respond(ctx, w, resp, http.StatusBadRequest)
				}

				if t := errs.GetTrusted(err); t != nil {
					return web.Respond(ctx, w, errs.Response{Error: t.Error()}, t.Status)
				}

				if web.IsShutdown(err) {
					return err
				}

				return web.Respond(ctx, w, errs.Response{Error: "internal server error"}, http.StatusInternalServerError)
			}
			return nil
		}
		return h
	}
	return m
}

func fieldMap(fe validate.FieldErrors) map[string]string {
	out := make(map[string]string, len(fe))
	for _, f := range fe {
		out[f.Field] = f.Error
	}
	return out
}
