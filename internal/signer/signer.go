// Package signer produces progress attestations that the staking contract
// can verify with ecrecover.
//
// The signed digest is the EIP-191 personal-message hash of
// keccak256(abi.encodePacked(uint256 commitmentId, address user, uint256 progress, bytes32 attestationHash)).
package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNotConfigured is returned when no signing key was provided
	ErrNotConfigured = errors.New("attestation signer not configured")
	// ErrInvalidAddress is returned for a malformed user address
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidHash is returned when an attestation hash is not 32 bytes of hex
	ErrInvalidHash = errors.New("invalid attestation hash")
)

// Signature is the result of signing one attestation
type Signature struct {
	Signature   string `json:"signature"`
	MessageHash string `json:"message_hash"`
	Signer      string `json:"signer"`
}

// Signer signs attestations with a fixed secp256k1 key
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New creates a signer from a hex private key. An empty key yields a signer
// that reports ErrNotConfigured on Sign.
func New(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return &Signer{}, nil
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Configured reports whether a signing key is loaded
func (s *Signer) Configured() bool {
	return s != nil && s.key != nil
}

// Address returns the checksummed signer address, or "" when unconfigured
func (s *Signer) Address() string {
	if !s.Configured() {
		return ""
	}
	return s.address.Hex()
}

// AttestationHash derives the unique reference hash of one checkpoint
func AttestationHash(commitmentID int64, userAddress string, progress int64, at time.Time) string {
	data := fmt.Sprintf("%d-%s-%d-%s", commitmentID, userAddress, progress,
		at.UTC().Format("2006-01-02T15:04:05.999999"))
	sum := sha256.Sum256([]byte(data))
	return "0x" + hex.EncodeToString(sum[:])
}

// MessageHash computes the packed keccak256 digest the contract rebuilds on-chain
func MessageHash(commitmentID int64, userAddress string, progress int64, attestationHash string) ([]byte, error) {
	if !common.IsHexAddress(userAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, userAddress)
	}
	att, err := hex.DecodeString(strings.TrimPrefix(attestationHash, "0x"))
	if err != nil || len(att) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, attestationHash)
	}

	return crypto.Keccak256(
		uint256(commitmentID),
		common.HexToAddress(userAddress).Bytes(),
		uint256(progress),
		att,
	), nil
}

func uint256(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

// Sign signs the attestation tuple. The output is deterministic for a fixed key.
func (s *Signer) Sign(ctx context.Context, commitmentID int64, userAddress string, progress int64, attestationHash string) (*Signature, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := MessageHash(commitmentID, userAddress, progress, attestationHash)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return &Signature{
		Signature:   hexutil.Encode(sig),
		MessageHash: hexutil.Encode(msg),
		Signer:      s.address.Hex(),
	}, nil
}

// Recover returns the address that produced signature over the attestation tuple
func Recover(commitmentID int64, userAddress string, progress int64, attestationHash, signature string) (string, error) {
	msg, err := MessageHash(commitmentID, userAddress, progress, attestationHash)
	if err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify reports whether signature was produced by this signer's key
func (s *Signer) Verify(commitmentID int64, userAddress string, progress int64, attestationHash, signature string) (bool, error) {
	if !s.Configured() {
		return false, ErrNotConfigured
	}
	recovered, err := Recover(commitmentID, userAddress, progress, attestationHash, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(recovered, s.address.Hex()), nil
}
