package chain

import (
	"fmt"
	"time"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
)

// SubmitTransaction is spec §6's submit_transaction ingress operation:
// verify the signature, check the sender's nonce against the account
// snapshot, and admit it to the mempool. signerPubKey is required the
// first time an address submits an Ed25519-signed (CONTRACT_CHECKPOINT)
// transaction — Ed25519 signatures carry no recoverable public key the
// way the ECDSA transactions do — and is cached for later submissions and
// for block validation's PublicKeyFor lookup.
func (c *Chain) SubmitTransaction(tx ledger.SignedTx, signerPubKey []byte) error {
	scheme := tx.Type.SignatureScheme()

	var pubKey []byte
	if scheme == crypto.SchemeEd25519 {
		if signerPubKey != nil {
			c.RegisterPublicKey(tx.From, signerPubKey)
			pubKey = signerPubKey
		} else {
			cached, ok := c.publicKeyFor(tx.From)
			if !ok {
				return ErrUnknownSigner
			}
			pubKey = cached
		}
	}

	if err := tx.Verify(pubKey); err != nil {
		return fmt.Errorf("%w: %v", ErrTxSignatureInvalid, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expectedNonce := uint64(1)
	if acct, ok, err := c.idx.GetAccount(tx.From); err != nil {
		return err
	} else if ok {
		expectedNonce = acct.Nonce + 1
	}

	if err := c.mempool.Upsert(tx, time.Now(), expectedNonce); err != nil {
		return err
	}

	c.evHandler("chain: admitted tx %x from %s (type=%d)", tx.Hash(), tx.From, tx.Type)
	return nil
}
