package domain

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flowsniper/flowsniper/internal/apperror"
)

// Pairing binds an owner wallet to the operator key it authorized.
type Pairing struct {
	Owner    common.Address
	Operator common.Address
	PairedAt time.Time
}

// PairingMessage is the human-readable text the owner signs (EIP-191
// personal_sign). Wallets display it verbatim, so it names both parties.
func PairingMessage(owner, operator common.Address) string {
	return fmt.Sprintf(
		"FlowSniper pairing\nOwner: %s\nOperator: %s\nI authorize this operator to trade on my behalf.",
		owner.Hex(), operator.Hex(),
	)
}

// VerifyPairingSignature checks that signature is the owner's personal_sign
// over the pairing message. The recovered address must match owner exactly.
func VerifyPairingSignature(owner, operator common.Address, signature []byte) error {
	if len(signature) != crypto.SignatureLength {
		return apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContext(fmt.Sprintf("signature is %d bytes, want %d", len(signature), crypto.SignatureLength)))
	}

	// Wallets put 27/28 in the recovery byte; crypto wants 0/1.
	sig := bytes.Clone(signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(PairingMessage(owner, operator)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return apperror.New(apperror.CodeInvalidSignature,
			apperror.WithCause(err),
			apperror.WithContext("signature recovery failed"))
	}

	if recovered := crypto.PubkeyToAddress(*pub); recovered != owner {
		return apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContext(fmt.Sprintf("recovered %s, want %s", recovered.Hex(), owner.Hex())))
	}

	return nil
}
