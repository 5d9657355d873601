package database

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PublicKey represents a compressed secp256k1 public key that identifies an
// account on the blockchain.
type PublicKey [signature.PublicKeyLength]byte

// ToPublicKey converts a hex-encoded string to a public key.
func ToPublicKey(hex string) (PublicKey, error) {
	var pk PublicKey
	if err := pk.UnmarshalText([]byte(hex)); err != nil {
		return PublicKey{}, err
	}

	return pk, nil
}

// PublicKeyFromECDSA returns the compressed public key of the specified key.
func PublicKeyFromECDSA(publicKey ecdsa.PublicKey) PublicKey {
	var pk PublicKey
	copy(pk[:], crypto.CompressPubkey(&publicKey))
	return pk
}

// PublicKeyFromPrivate returns the compressed public key of the private key.
func PublicKeyFromPrivate(privateKey *ecdsa.PrivateKey) PublicKey {
	return PublicKeyFromECDSA(privateKey.PublicKey)
}

// IsZero reports whether the key is unset.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Compare orders public keys by their bytes.
func (pk PublicKey) Compare(other PublicKey) int {
	return bytes.Compare(pk[:], other[:])
}

// String implements the Stringer interface.
func (pk PublicKey) String() string {
	return hexutil.Encode(pk[:])
}

// MarshalText implements the TextMarshaler interface.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements the TextUnmarshaler interface.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid public key %q: %w", text, err)
	}

	if len(b) != len(pk) {
		return fmt.Errorf("invalid public key length %d", len(b))
	}

	copy(pk[:], b)
	return nil
}
