// Package signature provides helper functions for handling the blockchain
// signature and hashing needs.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
var ZeroHash common.Hash

// PublicKeyLength is the size of a compressed secp256k1 public key.
const PublicKeyLength = 33

// ardanID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the Ardan blockchain.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const ardanID = 29

// Set of errors returned when a signature can't be verified.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidRecoveryID = errors.New("invalid recovery id")
	ErrSignerMismatch    = errors.New("signature does not match signer")
)

// =============================================================================

// Hash returns the Keccak256 hash of the JSON representation of the value.
func Hash(value any) common.Hash {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return crypto.Keccak256Hash(data)
}

// GenerationHash derives the generation hash a signer would produce on top
// of the parent generation hash.
func GenerationHash(parent common.Hash, publicKey []byte) common.Hash {
	return crypto.Keccak256Hash(parent[:], publicKey)
}

// PublicKey returns the compressed public key for the private key.
func PublicKey(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.CompressPubkey(&privateKey.PublicKey)
}

// Sign uses the specified private key to sign the data. The returned
// signature is 65 bytes in the [R|S|V] format with the Ardan id in V.
func Sign(value any, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, sig[:crypto.RecoveryIDOffset]) {
		return nil, ErrInvalidSignature
	}

	sig[crypto.RecoveryIDOffset] += ardanID

	return sig, nil
}

// VerifySignature verifies the signature conforms to our standards and was
// produced by the owner of the compressed public key.
func VerifySignature(value any, sig []byte, publicKey []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - ardanID
	if v != 0 && v != 1 {
		return ErrInvalidRecoveryID
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return ErrInvalidSignature
	}

	data, err := stamp(value)
	if err != nil {
		return err
	}

	// Capture the public key associated with this data and signature.
	raw := slices.Clone(sig)
	raw[crypto.RecoveryIDOffset] = v

	recovered, err := crypto.SigToPub(data, raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if !slices.Equal(crypto.CompressPubkey(recovered), publicKey) {
		return ErrSignerMismatch
	}

	return nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the Ardan stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Convert the stamp into a slice of bytes. This stamp is
	// used so signatures we produce when signing data
	// are always unique to the Ardan blockchain.
	stamp := []byte("\x19Ardan Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash)

	return data, nil
}
