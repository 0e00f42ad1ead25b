package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cosmos/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// KeyProvider is a Provider backed by a local secp256k1 key. It serves a
// single chain and a single account.
type KeyProvider struct {
	chainID string
	signer  *keySigner
	enabled atomic.Bool
}

// NewKeyProvider wraps key for chainID, deriving a bech32 address with prefix
func NewKeyProvider(key *ecdsa.PrivateKey, chainID, prefix string) (*KeyProvider, error) {
	if key == nil {
		return nil, errors.New("private key is nil")
	}
	pub := crypto.CompressPubkey(&key.PublicKey)
	address, err := AccountAddress(prefix, pub)
	if err != nil {
		return nil, err
	}
	return &KeyProvider{
		chainID: chainID,
		signer:  &keySigner{key: key, account: Account{Address: address, Algo: "secp256k1", PubKey: pub}},
	}, nil
}

// LoadKeyProvider reads a hex-encoded secp256k1 key from path
func LoadKeyProvider(path, chainID, prefix string) (*KeyProvider, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file: %w", err)
	}
	return NewKeyProvider(key, chainID, prefix)
}

// Enable accepts only the chain the provider was built for
func (p *KeyProvider) Enable(ctx context.Context, chainID string) error {
	if chainID != p.chainID {
		return fmt.Errorf("chain %s is not supported by this key (want %s)", chainID, p.chainID)
	}
	p.enabled.Store(true)
	return nil
}

// OfflineSigner returns the key signer once the chain is enabled
func (p *KeyProvider) OfflineSigner(chainID string) (Signer, error) {
	if chainID != p.chainID || !p.enabled.Load() {
		return nil, fmt.Errorf("chain %s is not enabled", chainID)
	}
	return p.signer, nil
}

// Address returns the derived account address
func (p *KeyProvider) Address() string {
	return p.signer.account.Address
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	account Account
}

func (s *keySigner) Accounts(ctx context.Context) ([]Account, error) {
	return []Account{s.account}, nil
}

// Sign returns the 64-byte r||s signature over sha256(doc)
func (s *keySigner) Sign(ctx context.Context, address string, doc []byte) ([]byte, error) {
	if address != s.account.Address {
		return nil, fmt.Errorf("unknown signer address %s", address)
	}
	digest := sha256.Sum256(doc)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig[:64], nil
}

// AccountAddress derives the cosmos account address of a compressed
// secp256k1 public key: bech32(prefix, ripemd160(sha256(pub))).
func AccountAddress(prefix string, compressedPub []byte) (string, error) {
	if len(compressedPub) != 33 {
		return "", fmt.Errorf("expected 33-byte compressed public key, got %d bytes", len(compressedPub))
	}
	sha := sha256.Sum256(compressedPub)
	h := ripemd160.New()
	h.Write(sha[:])

	conv, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	address, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return address, nil
}
