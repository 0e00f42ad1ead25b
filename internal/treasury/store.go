// Package treasury keeps the polled DAO bank balances.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matrixise/daodash/internal/format"
	"github.com/matrixise/daodash/internal/indexer"
	"github.com/matrixise/daodash/internal/poller"
)

// BalanceFetcher fetches the raw bank/balances payload
type BalanceFetcher interface {
	BankBalances(ctx context.Context, chainID, address string) ([]byte, error)
}

// Balance is a non-zero treasury holding ready for display
type Balance struct {
	Denom       string `json:"denom"`
	DisplayName string `json:"displayName"`
	Amount      string `json:"amount"`
	Formatted   string `json:"formatted"`
	Decimals    uint8  `json:"decimals"`
}

// Config holds store configuration
type Config struct {
	ChainID      string
	DAOAddress   string
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger

	// ReportStatusErrors surfaces non-OK indexer responses. When false they
	// are logged and the previous balances stay in place.
	ReportStatusErrors bool
}

// Store holds the latest balances snapshot in indexer order
type Store struct {
	cfg     Config
	fetcher BalanceFetcher
	tokens  *format.TokenTable
	logger  *slog.Logger

	mu          sync.RWMutex
	raw         []indexer.RawBalance
	errMsg      string
	loading     bool
	lastSuccess time.Time
	closed      bool
	poller      *poller.Poller[[]indexer.RawBalance]
}

// New creates a store; call Start to begin polling
func New(cfg Config, fetcher BalanceFetcher, tokens *format.TokenTable) *Store {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		cfg:     cfg,
		fetcher: fetcher,
		tokens:  tokens,
		logger:  cfg.Logger.With("store", "treasury"),
		loading: true,
	}
}

// Start fetches immediately and then every PollInterval
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("treasury store is stopped")
	}
	if s.poller != nil {
		return nil
	}

	p, err := poller.Start(poller.Config{
		Name:     "treasury",
		Interval: s.cfg.PollInterval,
		Clock:    s.cfg.Clock,
		Logger:   s.cfg.Logger,
	}, s.fetch, s.apply, func(err error) { s.fail(err) })
	if err != nil {
		return fmt.Errorf("failed to start treasury poller: %w", err)
	}
	s.poller = p
	return nil
}

// Stop cancels polling. Fetches still in flight have no effect once Stop returns.
func (s *Store) Stop() error {
	s.mu.Lock()
	s.closed = true
	p := s.poller
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Stop()
}

// Refresh runs one fetch outside the poll cadence and applies its outcome.
// While polling, the fetch is ordered with the ticks so an older in-flight
// tick cannot overwrite it. A swallowed status error still returns nil.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	p := s.poller
	s.mu.RUnlock()

	if p != nil {
		if err := p.Refresh(ctx); err != nil && s.surfaced(err) {
			return err
		}
		return nil
	}

	raw, err := s.fetch(ctx)
	if err != nil {
		if s.fail(err) {
			return err
		}
		return nil
	}
	s.apply(raw)
	return nil
}

func (s *Store) surfaced(err error) bool {
	return !indexer.IsStatusError(err) || s.cfg.ReportStatusErrors
}

func (s *Store) fetch(ctx context.Context) ([]indexer.RawBalance, error) {
	body, err := s.fetcher.BankBalances(ctx, s.cfg.ChainID, s.cfg.DAOAddress)
	if err != nil {
		return nil, err
	}
	return indexer.DecodeBalances(body)
}

func (s *Store) apply(raw []indexer.RawBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.raw = raw
	s.errMsg = ""
	s.loading = false
	s.lastSuccess = s.cfg.Clock.Now()
	s.logger.Debug("Treasury refreshed", "denoms", len(raw))
}

// fail records err and reports whether it was surfaced
func (s *Store) fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.loading = false

	if !s.surfaced(err) {
		s.logger.Debug("Ignoring non-OK treasury response", "error", err)
		return false
	}

	s.errMsg = fmt.Sprintf("Failed to load treasury data: %v", err)
	s.logger.Warn("Treasury refresh failed", "error", err)
	return true
}

// Balances returns the denoms with a positive amount, in indexer order
func (s *Store) Balances() []Balance {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()

	out := make([]Balance, 0, len(raw))
	for _, rb := range raw {
		if !format.IsPositive(rb.Amount) {
			continue
		}
		out = append(out, Balance{
			Denom:       rb.Denom,
			DisplayName: s.tokens.Name(rb.Denom),
			Amount:      rb.Amount,
			Formatted:   s.tokens.Amount(rb.Amount, rb.Denom),
			Decimals:    s.tokens.Decimals(rb.Denom),
		})
	}
	return out
}

// Raw returns a copy of the unfiltered snapshot
func (s *Store) Raw() []indexer.RawBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]indexer.RawBalance(nil), s.raw...)
}

// ErrorMessage returns the user-facing message of the last surfaced failure, or ""
func (s *Store) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Loading is true until the first refresh outcome
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastSuccess returns the time of the last applied successful refresh
func (s *Store) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// Name identifies the store in health reports
func (s *Store) Name() string {
	return "treasury"
}
