package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/matrixise/daodash/internal/metrics"
)

// Session holds at most one connected wallet and a single voting flag
// shared by every proposal.
type Session struct {
	chainID   string
	provider  Provider
	submitter VoteSubmitter
	logger    *slog.Logger

	mu     sync.Mutex
	info   *Info
	voting bool
}

// NewSession creates a disconnected session. provider may be nil, in which
// case Connect reports ErrWalletUnavailable.
func NewSession(chainID string, provider Provider, submitter VoteSubmitter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		chainID:   chainID,
		provider:  provider,
		submitter: submitter,
		logger:    logger.With("component", "wallet"),
	}
}

// Connect enables the chain, obtains a signer and adopts its first account.
// On failure the session is left disconnected and the error is returned.
func (s *Session) Connect(ctx context.Context) error {
	info, err := s.connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.info = nil
		s.logger.Error("Wallet connection failed", "chain_id", s.chainID, "error", err)
		return err
	}
	s.info = info
	s.logger.Info("Wallet connected", "chain_id", s.chainID, "address", info.Address)
	return nil
}

func (s *Session) connect(ctx context.Context) (*Info, error) {
	if s.provider == nil {
		return nil, ErrWalletUnavailable
	}
	if err := s.provider.Enable(ctx, s.chainID); err != nil {
		return nil, fmt.Errorf("failed to enable chain %s: %w", s.chainID, err)
	}
	signer, err := s.provider.OfflineSigner(s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get signer: %w", err)
	}
	accounts, err := signer.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return &Info{Address: accounts[0].Address, Signer: signer}, nil
}

// SubmitVote delegates one vote to the submitter. It returns ErrNotConnected
// without touching any state when no wallet is connected, and
// ErrVoteInProgress while another submission is outstanding. The voting flag
// is cleared whatever the outcome.
func (s *Session) SubmitVote(ctx context.Context, proposalID string, choice Choice) error {
	s.mu.Lock()
	if s.info == nil {
		s.mu.Unlock()
		metrics.ObserveVote(metrics.OutcomeRejected)
		return ErrNotConnected
	}
	if s.voting {
		s.mu.Unlock()
		metrics.ObserveVote(metrics.OutcomeRejected)
		return ErrVoteInProgress
	}
	s.voting = true
	signer := s.info.Signer
	address := s.info.Address
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.voting = false
		s.mu.Unlock()
	}()

	s.logger.Info("Submitting vote", "proposal_id", proposalID, "choice", choice, "address", address)
	if err := s.submitter.Submit(ctx, proposalID, choice, signer); err != nil {
		metrics.ObserveVote(metrics.OutcomeError)
		s.logger.Error("Vote submission failed", "proposal_id", proposalID, "error", err)
		return &SubmissionError{ProposalID: proposalID, Err: err}
	}

	metrics.ObserveVote(metrics.OutcomeSuccess)
	s.logger.Info("Vote submitted", "proposal_id", proposalID, "choice", choice)
	return nil
}

// Info returns the connected wallet, or false when disconnected
func (s *Session) Info() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info == nil {
		return Info{}, false
	}
	return *s.info, true
}

// Connected reports whether a wallet is connected
func (s *Session) Connected() bool {
	_, ok := s.Info()
	return ok
}

// Voting reports whether a submission is outstanding
func (s *Session) Voting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voting
}
