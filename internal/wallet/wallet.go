// Package wallet connects to an external signing capability and mediates
// vote submission.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWalletUnavailable is returned when no signing provider is configured
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrNotConnected is returned by SubmitVote before a successful Connect
	ErrNotConnected = errors.New("wallet not connected")
	// ErrVoteInProgress is returned while another submission is outstanding
	ErrVoteInProgress = errors.New("vote submission already in progress")
	// ErrNoAccounts is returned when the signer exposes no account
	ErrNoAccounts = errors.New("signer has no accounts")
)

// SubmissionError wraps a VoteSubmitter failure
type SubmissionError struct {
	ProposalID string
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("vote on proposal %s failed: %v", e.ProposalID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Account is one account exposed by a signer
type Account struct {
	Address string `json:"address"`
	Algo    string `json:"algo"`
	PubKey  []byte `json:"pubkey"`
}

// Signer signs documents on behalf of its accounts. The session never
// inspects it, it only lends it to a VoteSubmitter.
type Signer interface {
	Accounts(ctx context.Context) ([]Account, error)
	Sign(ctx context.Context, address string, doc []byte) ([]byte, error)
}

// Provider is the external signing capability
type Provider interface {
	Enable(ctx context.Context, chainID string) error
	OfflineSigner(chainID string) (Signer, error)
}

// Info describes a connected wallet
type Info struct {
	Address string
	Signer  Signer
}

// Choice is a vote option
type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

// ParseChoice accepts "yes" or "no", case-insensitively
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceYes, ChoiceNo:
		return c, nil
	default:
		return "", fmt.Errorf("invalid vote choice %q: must be yes or no", s)
	}
}

// VoteSubmitter casts a vote using a signer lent for the duration of the call
type VoteSubmitter interface {
	Submit(ctx context.Context, proposalID string, choice Choice, signer Signer) error
}
