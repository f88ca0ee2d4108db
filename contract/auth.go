package contract

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadKey parses a hex private key and returns it with its address.
func LoadKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("contract.LoadKey: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignAuthMessage signs message the way wallets sign personal messages
// (EIP-191). The signature is the password of the player's private documents.
func SignAuthMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("contract.SignAuthMessage: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// VerifyAuthMessage reports whether sig is address's signature of message.
func VerifyAuthMessage(address common.Address, message, sig string) bool {
	raw, err := hexutil.Decode(sig)
	if err != nil || len(raw) != crypto.SignatureLength {
		return false
	}
	raw[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), raw)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == address
}
