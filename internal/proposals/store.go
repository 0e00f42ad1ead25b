// Package proposals keeps the polled proposal list and its expand state.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matrixise/daodash/internal/indexer"
	"github.com/matrixise/daodash/internal/poller"
)

// Lister fetches the raw allProposals payload
type Lister interface {
	AllProposals(ctx context.Context, chainID, daoAddress string) ([]byte, error)
}

// Config holds store configuration
type Config struct {
	ChainID      string
	DAOAddress   string
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

// Store holds the latest proposal snapshot. The list is replaced wholesale on
// every successful refresh; expand state is keyed by id and outlives refreshes.
type Store struct {
	cfg    Config
	lister Lister
	logger *slog.Logger

	mu          sync.RWMutex
	proposals   []Proposal
	expanded    map[string]struct{}
	errMsg      string
	loading     bool
	lastSuccess time.Time
	closed      bool
	poller      *poller.Poller[[]Proposal]
}

// New creates a store; call Start to begin polling
func New(cfg Config, lister Lister) *Store {
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
		cfg:      cfg,
		lister:   lister,
		logger:   cfg.Logger.With("store", "proposals"),
		expanded: make(map[string]struct{}),
		loading:  true,
	}
}

// Start fetches immediately and then every PollInterval
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("proposal store is stopped")
	}
	if s.poller != nil {
		return nil
	}

	p, err := poller.Start(poller.Config{
		Name:     "proposals",
		Interval: s.cfg.PollInterval,
		Clock:    s.cfg.Clock,
		Logger:   s.cfg.Logger,
	}, s.fetch, s.apply, s.fail)
	if err != nil {
		return fmt.Errorf("failed to start proposal poller: %w", err)
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
// tick cannot overwrite it.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	p := s.poller
	s.mu.RUnlock()

	var err error
	if p != nil {
		err = p.Refresh(ctx)
	} else {
		var list []Proposal
		if list, err = s.fetch(ctx); err != nil {
			s.fail(err)
		} else {
			s.apply(list)
		}
	}

	if errors.Is(err, indexer.ErrNotArray) {
		return nil
	}
	return err
}

func (s *Store) fetch(ctx context.Context) ([]Proposal, error) {
	body, err := s.lister.AllProposals(ctx, s.cfg.ChainID, s.cfg.DAOAddress)
	if err != nil {
		return nil, err
	}
	raws, err := indexer.DecodeProposals(body)
	if err != nil {
		return nil, err
	}
	return Normalize(raws, s.logger), nil
}

func (s *Store) apply(list []Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.proposals = list
	s.errMsg = ""
	s.loading = false
	s.lastSuccess = s.cfg.Clock.Now()
	s.logger.Debug("Proposals refreshed", "count", len(list))
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.loading = false

	if errors.Is(err, indexer.ErrNotArray) {
		s.logger.Warn("Ignoring proposals payload that is not an array, keeping previous list", "count", len(s.proposals))
		return
	}

	s.errMsg = fmt.Sprintf("Failed to load proposals: %v", err)
	s.logger.Warn("Proposal refresh failed", "error", err)
}

// Proposals returns a copy of the current list, most recent first
func (s *Store) Proposals() []Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Proposal(nil), s.proposals...)
}

// Items returns the current list with each proposal's expand state
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, len(s.proposals))
	for i, p := range s.proposals {
		_, expanded := s.expanded[p.ID]
		items[i] = Item{Proposal: p, Expanded: expanded}
	}
	return items
}

// Get returns the proposal with id from the current list
func (s *Store) Get(id string) (Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.proposals {
		if p.ID == id {
			return p, true
		}
	}
	return Proposal{}, false
}

// Toggle flips the expand state of id and returns the new state
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expanded[id]; ok {
		delete(s.expanded, id)
		return false
	}
	s.expanded[id] = struct{}{}
	return true
}

// IsExpanded reports whether id is expanded
func (s *Store) IsExpanded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.expanded[id]
	return ok
}

// ErrorMessage returns the user-facing message of the last failed refresh, or ""
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
	return "proposals"
}
