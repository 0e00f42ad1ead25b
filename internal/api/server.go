// Package api exposes the widget state over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matrixise/daodash/internal/proposals"
	"github.com/matrixise/daodash/internal/treasury"
	"github.com/matrixise/daodash/internal/wallet"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProposalSource is the proposal widget state
type ProposalSource interface {
	Items() []proposals.Item
	Get(id string) (proposals.Proposal, bool)
	Toggle(id string) bool
	Loading() bool
	ErrorMessage() string
	LastSuccess() time.Time
}

// TreasurySource is the treasury widget state
type TreasurySource interface {
	Balances() []treasury.Balance
	Loading() bool
	ErrorMessage() string
	LastSuccess() time.Time
}

// WalletSession connects a wallet and submits votes
type WalletSession interface {
	Connect(ctx context.Context) error
	SubmitVote(ctx context.Context, proposalID string, choice wallet.Choice) error
	Info() (wallet.Info, bool)
	Voting() bool
}

// Deps are the components served by the router
type Deps struct {
	Proposals ProposalSource
	Treasury  TreasurySource
	Wallet    WalletSession
	Health    http.HandlerFunc
	Logger    *slog.Logger
}

// ProposalsResponse is the body of GET /proposals
type ProposalsResponse struct {
	Loading     bool             `json:"loading"`
	Error       string           `json:"error,omitempty"`
	Voting      bool             `json:"voting"`
	LastUpdated *time.Time       `json:"lastUpdated,omitempty"`
	Items       []proposals.Item `json:"items"`
}

// TreasuryResponse is the body of GET /treasury
type TreasuryResponse struct {
	Loading     bool               `json:"loading"`
	Error       string             `json:"error,omitempty"`
	LastUpdated *time.Time         `json:"lastUpdated,omitempty"`
	Balances    []treasury.Balance `json:"balances"`
}

// WalletResponse is the body of GET /wallet
type WalletResponse struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Voting    bool   `json:"voting"`
}

// ToggleResponse is the body of POST /proposals/{id}/toggle
type ToggleResponse struct {
	ID       string `json:"id"`
	Expanded bool   `json:"expanded"`
}

// VoteResponse is the body of a successful POST /proposals/{id}/vote
type VoteResponse struct {
	ID     string        `json:"id"`
	Choice wallet.Choice `json:"choice"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type server struct {
	deps   Deps
	logger *slog.Logger
}

// NewRouter builds the HTTP routes
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if deps.Health != nil {
		r.Get("/health", deps.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/proposals", func(r chi.Router) {
		r.Get("/", s.listProposals)
		r.Post("/{id}/toggle", s.toggleProposal)
		r.Post("/{id}/vote", s.vote)
	})
	r.Get("/treasury", s.getTreasury)
	r.Get("/wallet", s.getWallet)
	r.Post("/wallet/connect", s.connectWallet)

	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *server) listProposals(w http.ResponseWriter, r *http.Request) {
	resp := ProposalsResponse{
		Loading:     s.deps.Proposals.Loading(),
		Error:       s.deps.Proposals.ErrorMessage(),
		LastUpdated: timePtr(s.deps.Proposals.LastSuccess()),
		Items:       s.deps.Proposals.Items(),
	}
	if s.deps.Wallet != nil {
		resp.Voting = s.deps.Wallet.Voting()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) toggleProposal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Proposals.Get(id); !ok {
		s.writeError(w, http.StatusNotFound, "proposal not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ToggleResponse{ID: id, Expanded: s.deps.Proposals.Toggle(id)})
}

func (s *server) vote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	choice, err := wallet.ParseChoice(r.FormValue("choice"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	proposal, ok := s.deps.Proposals.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "proposal not found")
		return
	}
	if proposal.Status != proposals.StatusOpen {
		s.writeError(w, http.StatusConflict, "proposal is "+string(proposal.Status)+", voting is closed")
		return
	}
	if s.deps.Wallet == nil {
		s.writeError(w, http.StatusPreconditionFailed, wallet.ErrWalletUnavailable.Error())
		return
	}

	err = s.deps.Wallet.SubmitVote(r.Context(), id, choice)
	var subErr *wallet.SubmissionError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, VoteResponse{ID: id, Choice: choice})
	case errors.Is(err, wallet.ErrNotConnected):
		s.writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, wallet.ErrVoteInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &subErr):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) getTreasury(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, TreasuryResponse{
		Loading:     s.deps.Treasury.Loading(),
		Error:       s.deps.Treasury.ErrorMessage(),
		LastUpdated: timePtr(s.deps.Treasury.LastSuccess()),
		Balances:    s.deps.Treasury.Balances(),
	})
}

func (s *server) getWallet(w http.ResponseWriter, r *http.Request) {
	var resp WalletResponse
	if s.deps.Wallet != nil {
		if info, ok := s.deps.Wallet.Info(); ok {
			resp.Connected = true
			resp.Address = info.Address
		}
		resp.Voting = s.deps.Wallet.Voting()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) connectWallet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Wallet == nil {
		s.writeError(w, http.StatusServiceUnavailable, wallet.ErrWalletUnavailable.Error())
		return
	}
	if err := s.deps.Wallet.Connect(r.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, wallet.ErrWalletUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.getWallet(w, r)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
