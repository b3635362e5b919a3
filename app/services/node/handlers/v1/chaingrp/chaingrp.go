// Package chaingrp exposes business/core/chain's six spec §6 ingress and
// egress operations as JSON HTTP and websocket endpoints, bound to one
// Chain actor per node rather than any teacher state type.
package chaingrp

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/caiorlm/logichain/business/core/chain"
	"github.com/caiorlm/logichain/business/web/errs"
	"github.com/caiorlm/logichain/foundation/web"
	"github.com/caiorlm/logichain/internal/block"
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/validate"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers groups the dependencies every chaingrp endpoint needs.
type Handlers struct {
	Log      *zap.SugaredLogger
	Chain    *chain.Chain
	Validate *validate.Validator
	WS       websocket.Upgrader
}

// SubscribeEvents implements spec §6's subscribe_events egress operation:
// upgrade to a websocket and relay every block_appended/reorg/
// contract_state_changed event published for this connection's trace id.
func (h Handlers) SubscribeEvents(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Chain.SubscribeEvents(v.TraceID)
	defer h.Chain.UnsubscribeEvents(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction implements spec §6's submit_transaction ingress
// operation.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req SubmitTransactionRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := h.Validate.Check(req); err != nil {
		return err
	}

	txBytes, err := hex.DecodeString(req.TxHex)
	if err != nil {
		return errs.NewTrusted(errors.New("tx_hex is not valid hex"), http.StatusBadRequest)
	}

	tx, err := ledger.DecodeTx(txBytes)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	var signerPubKey []byte
	if req.SignerPubKeyHex != "" {
		signerPubKey, err = hex.DecodeString(req.SignerPubKeyHex)
		if err != nil {
			return errs.NewTrusted(errors.New("signer_pubkey_hex is not valid hex"), http.StatusBadRequest)
		}
	}

	if err := h.Chain.SubmitTransaction(tx, signerPubKey); err != nil {
		return translateChainError(err)
	}

	hash := tx.Hash()
	resp := SubmitTransactionResponse{
		Accepted: true,
		TxHash:   hex.EncodeToString(hash[:]),
	}
	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// SubmitBlock implements spec §6's submit_block ingress operation.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req SubmitBlockRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := h.Validate.Check(req); err != nil {
		return err
	}

	blockBytes, err := hex.DecodeString(req.BlockHex)
	if err != nil {
		return errs.NewTrusted(errors.New("block_hex is not valid hex"), http.StatusBadRequest)
	}

	b, err := block.Decode(blockBytes)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.Chain.ProcessProposedBlock(b); err != nil {
		return translateChainError(err)
	}

	hash := b.Hash()
	resp := SubmitBlockResponse{
		Accepted:  true,
		BlockHash: hex.EncodeToString(hash[:]),
	}
	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// QueryAccount implements spec §6's query_account egress operation.
func (h Handlers) QueryAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := crypto.ParseAddress(web.Param(r, "address"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	acct, err := h.Chain.QueryAccount(addr)
	if err != nil {
		return translateChainError(err)
	}

	return web.Respond(ctx, w, AccountResponse{Account: acct}, http.StatusOK)
}

// QueryContract implements spec §6's query_contract egress operation.
func (h Handlers) QueryContract(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	idBytes, err := hex.DecodeString(web.Param(r, "id"))
	if err != nil || len(idBytes) != 32 {
		return errs.NewTrusted(errors.New("id must be a 32-byte hex contract id"), http.StatusBadRequest)
	}

	var id [32]byte
	copy(id[:], idBytes)

	ct, err := h.Chain.QueryContract(id)
	if err != nil {
		return translateChainError(err)
	}

	return web.Respond(ctx, w, ContractResponse{Contract: ct}, http.StatusOK)
}

// QueryTip implements spec §6's query_tip egress operation.
func (h Handlers) QueryTip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip := h.Chain.QueryTip()
	resp := TipResponse{
		Height:         tip.Height,
		Hash:           hex.EncodeToString(tip.Hash[:]),
		CumulativeWork: tip.CumulativeWork,
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status reports node health used by wallet tooling's polling backoff.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := StatusResponse{MempoolCount: h.Chain.QueryMempoolCount()}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// translateChainError maps business/core/chain's sentinel errors onto the
// HTTP statuses the teacher's errs.Trusted pattern expects every ingress
// boundary function to return for expected, nameable failures.
func translateChainError(err error) error {
	switch {
	case errors.Is(err, chain.ErrAccountNotFound), errors.Is(err, chain.ErrContractNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)
	case errors.Is(err, chain.ErrTxSignatureInvalid), errors.Is(err, chain.ErrUnknownSigner):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, coordgrid.ErrCoordinateSaturated):
		return errs.NewTrusted(err, http.StatusTooManyRequests)
	default:
		return err
	}
}
