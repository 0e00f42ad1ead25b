package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// VoteDoc is the document signed for a DAO proposal vote
type VoteDoc struct {
	ChainID  string      `json:"chain_id"`
	Sender   string      `json:"sender"`
	Contract string      `json:"contract"`
	Msg      ExecuteVote `json:"msg"`
}

// ExecuteVote is the contract execute message
type ExecuteVote struct {
	Vote VoteMsg `json:"vote"`
}

// VoteMsg carries the numeric proposal id and the option
type VoteMsg struct {
	ProposalID uint64 `json:"proposal_id"`
	Vote       Choice `json:"vote"`
}

// DryRunSubmitter signs the vote message with the lent signer and logs it.
// Nothing is broadcast.
type DryRunSubmitter struct {
	ChainID  string
	Contract string
	Logger   *slog.Logger
}

// Submit implements VoteSubmitter
func (d *DryRunSubmitter) Submit(ctx context.Context, proposalID string, choice Choice, signer Signer) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id, err := ParseProposalNumber(proposalID)
	if err != nil {
		return err
	}
	accounts, err := signer.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}
	sender := accounts[0].Address

	doc, err := json.Marshal(VoteDoc{
		ChainID:  d.ChainID,
		Sender:   sender,
		Contract: d.Contract,
		Msg:      ExecuteVote{Vote: VoteMsg{ProposalID: id, Vote: choice}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode vote: %w", err)
	}

	sig, err := signer.Sign(ctx, sender, doc)
	if err != nil {
		return fmt.Errorf("failed to sign vote: %w", err)
	}

	logger.Info("Vote signed (dry run, not broadcast)",
		"proposal_id", id,
		"choice", choice,
		"sender", sender,
		"doc", string(doc),
		"signature", hex.EncodeToString(sig),
	)
	return nil
}

// ParseProposalNumber extracts the numeric id from an indexer id such as
// "A12" (proposal module prefix followed by the number) or "12".
func ParseProposalNumber(id string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimLeftFunc(id, unicode.IsLetter), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q", id)
	}
	return n, nil
}
