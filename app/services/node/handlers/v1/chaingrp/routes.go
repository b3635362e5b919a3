package chaingrp

import (
	"net/http"

	"github.com/caiorlm/logichain/business/core/chain"
	"github.com/caiorlm/logichain/foundation/web"
	"github.com/caiorlm/logichain/internal/validate"
	"go.uber.org/zap"
)

// Config bundles the dependencies Routes needs to wire every spec §6
// operation under the /v1/chain group.
type Config struct {
	Log      *zap.SugaredLogger
	Chain    *chain.Chain
	Validate *validate.Validator
}

// Routes registers the six spec §6 ingress/egress operations under the
// /v1/chain group on the given App (the node's single public mux), along
// with a status read used by wallet tooling.
func Routes(app *web.App, cfg Config) {
	h := Handlers{
		Log:      cfg.Log,
		Chain:    cfg.Chain,
		Validate: cfg.Validate,
	}

	const group = "v1/chain"

	app.Handle(http.MethodPost, group, "/transactions", h.SubmitTransaction)
	app.Handle(http.MethodPost, group, "/blocks", h.SubmitBlock)
	app.Handle(http.MethodGet, group, "/accounts/:address", h.QueryAccount)
	app.Handle(http.MethodGet, group, "/contracts/:id", h.QueryContract)
	app.Handle(http.MethodGet, group, "/tip", h.QueryTip)
	app.Handle(http.MethodGet, group, "/status", h.Status)
	app.Handle(http.MethodGet, group, "/events", h.SubscribeEvents)
}
