package proposals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/daodash/internal/indexer"
)

const (
	testChain = "osmosis-1"
	testDAO   = "osmo1sy9k228qzke0nd3k3vmxdvr68xdlqsu66h3xgm9ke3c4jhamusvsz98pre"
)

// fakeLister returns queued responses; the last one repeats
type fakeLister struct {
	mu        sync.Mutex
	responses []response
	calls     atomic.Int32
	chainID   string
	dao       string
}

type response struct {
	body string
	err  error
}

func (f *fakeLister) AllProposals(ctx context.Context, chainID, daoAddress string) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chainID, f.dao = chainID, daoAddress
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return []byte(r.body), r.err
}

func (f *fakeLister) push(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{body: body, err: err})
}

func newStore(lister *fakeLister) *Store {
	return New(Config{ChainID: testChain, DAOAddress: testDAO}, lister)
}

const threeProposals = `[
	{"id":"A","proposal":{"title":"First","description":"one","status":"executed"},"createdAt":"2024-01-01T00:00:00Z","completedAt":"2024-01-05T00:00:00Z"},
	{"id":"B","proposal":{"title":"Second","description":"two","status":"rejected"},"createdAt":"2024-02-01T00:00:00Z","completedAt":"2024-02-05T00:00:00Z"},
	{"id":"C","proposal":{"title":"Third","description":"three","status":"open"},"createdAt":"2024-03-01T00:00:00Z"}
]`

func ids(list []Proposal) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func TestRefreshReversesOrder(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	store := newStore(lister)

	assert.True(t, store.Loading())
	require.NoError(t, store.Refresh(context.Background()))

	list := store.Proposals()
	assert.Equal(t, []string{"C", "B", "A"}, ids(list))
	assert.False(t, store.Loading())
	assert.Empty(t, store.ErrorMessage())
	assert.Equal(t, testChain, lister.chainID)
	assert.Equal(t, testDAO, lister.dao)

	assert.Equal(t, Proposal{
		ID:          "A",
		Title:       "First",
		Description: "one",
		Status:      StatusExecuted,
		CreatedAt:   "2024-01-01T00:00:00Z",
		CompletedAt: "2024-01-05T00:00:00Z",
	}, list[2])
	assert.Empty(t, list[0].CompletedAt)
}

func TestRefreshAppliesDefaults(t *testing.T) {
	lister := &fakeLister{}
	lister.push(`[
		{"id":"1","createdAt":"2024-01-01T00:00:00Z"},
		{"id":"2","proposal":{"title":"","description":"","status":"vetoed"}},
		{"id":3,"proposal":{"title":"Numeric id","status":"PASSED"}}
	]`, nil)
	store := newStore(lister)

	require.NoError(t, store.Refresh(context.Background()))
	list := store.Proposals()
	require.Len(t, list, 3)

	assert.Equal(t, "3", list[0].ID)
	assert.Equal(t, StatusPassed, list[0].Status)
	assert.Equal(t, DefaultDescription, list[0].Description)

	assert.Equal(t, DefaultTitle, list[1].Title)
	assert.Equal(t, DefaultDescription, list[1].Description)
	assert.Equal(t, StatusUnknown, list[1].Status)

	// Missing nested proposal: defaults, never a panic
	assert.Equal(t, DefaultTitle, list[2].Title)
	assert.Equal(t, StatusUnknown, list[2].Status)
	assert.Equal(t, "2024-01-01T00:00:00Z", list[2].CreatedAt)
}

func TestRefreshFailureKeepsList(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	lister.push("", &indexer.StatusError{StatusCode: 500})
	lister.push(`[{"id":`, nil)
	store := newStore(lister)

	require.NoError(t, store.Refresh(context.Background()))

	err := store.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to load proposals: http error: status 500", store.ErrorMessage())
	assert.Equal(t, []string{"C", "B", "A"}, ids(store.Proposals()))

	err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, indexer.ErrParse)
	assert.Contains(t, store.ErrorMessage(), "Failed to load proposals: ")
	assert.Len(t, store.Proposals(), 3)
}

func TestSuccessClearsErrorMessage(t *testing.T) {
	lister := &fakeLister{}
	lister.push("", fmt.Errorf("%w: connection refused", indexer.ErrFetch))
	lister.push(threeProposals, nil)
	store := newStore(lister)

	require.Error(t, store.Refresh(context.Background()))
	assert.False(t, store.Loading())
	assert.NotEmpty(t, store.ErrorMessage())

	require.NoError(t, store.Refresh(context.Background()))
	assert.Empty(t, store.ErrorMessage())
	assert.False(t, store.LastSuccess().IsZero())
}

func TestNonArrayPayloadIsNoOp(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	lister.push(`{"error":"contract not found"}`, nil)
	store := newStore(lister)

	require.NoError(t, store.Refresh(context.Background()))
	require.NoError(t, store.Refresh(context.Background()))

	assert.Equal(t, []string{"C", "B", "A"}, ids(store.Proposals()))
	assert.Empty(t, store.ErrorMessage())
}

func TestDuplicateIDsAreDropped(t *testing.T) {
	lister := &fakeLister{}
	lister.push(`[
		{"id":"1","proposal":{"title":"old"}},
		{"id":"2","proposal":{"title":"two"}},
		{"id":"1","proposal":{"title":"new"}},
		{"proposal":{"title":"no id"}}
	]`, nil)
	store := newStore(lister)

	require.NoError(t, store.Refresh(context.Background()))
	list := store.Proposals()

	assert.Equal(t, []string{"1", "2"}, ids(list))
	assert.Equal(t, "new", list[0].Title)
}

func TestToggle(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	store := newStore(lister)
	require.NoError(t, store.Refresh(context.Background()))

	assert.True(t, store.Toggle("B"))
	assert.True(t, store.IsExpanded("B"))
	assert.False(t, store.IsExpanded("A"))

	items := store.Items()
	require.Len(t, items, 3)
	assert.False(t, items[0].Expanded)
	assert.True(t, items[1].Expanded)

	assert.False(t, store.Toggle("B"))
	assert.False(t, store.IsExpanded("B"))
}

func TestExpandStateSurvivesRefresh(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	lister.push(`[
		{"id":"B","proposal":{"title":"Second","status":"rejected"}},
		{"id":"C","proposal":{"title":"Third","status":"passed"}},
		{"id":"D","proposal":{"title":"Fourth","status":"open"}}
	]`, nil)
	store := newStore(lister)
	require.NoError(t, store.Refresh(context.Background()))

	store.Toggle("C")
	require.NoError(t, store.Refresh(context.Background()))

	items := store.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "D", items[0].ID)
	assert.Equal(t, "C", items[1].ID)
	assert.True(t, items[1].Expanded)
	assert.Equal(t, StatusPassed, items[1].Status)

	p, ok := store.Get("C")
	assert.True(t, ok)
	assert.Equal(t, "Third", p.Title)
	_, ok = store.Get("A")
	assert.False(t, ok)
}

func TestReadersNeverSeePartialList(t *testing.T) {
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	store := newStore(lister)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				n := len(store.Proposals())
				assert.True(t, n == 0 || n == 3, "observed partial list of %d", n)
			}
		}
	}()

	for range 50 {
		require.NoError(t, store.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()
}

func TestPollingLifecycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lister := &fakeLister{}
	lister.push(threeProposals, nil)
	store := New(Config{ChainID: testChain, DAOAddress: testDAO, PollInterval: 30 * time.Second, Clock: clock}, lister)

	require.NoError(t, store.Start())
	require.NoError(t, store.Start(), "second start is a no-op")

	// Immediate fetch on start
	assert.Eventually(t, func() bool { return len(store.Proposals()) == 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		clock.Advance(30 * time.Second)
		return lister.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, store.Stop())
	after := lister.calls.Load()

	clock.Advance(30 * time.Second)
	clock.Advance(30 * time.Second)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, after, lister.calls.Load(), "no fetch after stop")
	assert.Error(t, store.Start(), "stopped store cannot restart")
}

// blockingLister blocks every call until released
type blockingLister struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLister) AllProposals(ctx context.Context, chainID, daoAddress string) ([]byte, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil, errors.New("late failure")
}

func TestStopDiscardsInFlightFetch(t *testing.T) {
	lister := &blockingLister{started: make(chan struct{}), release: make(chan struct{})}
	store := New(Config{ChainID: testChain, DAOAddress: testDAO, Clock: clockwork.NewFakeClock()}, lister)

	require.NoError(t, store.Start())
	select {
	case <-lister.started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	require.NoError(t, store.Stop())
	close(lister.release)
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, store.ErrorMessage(), "no error surfaced after stop")
	assert.True(t, store.Loading(), "no state mutation after stop")
}

// slowFirstLister blocks its first call and answers it with an old list
type slowFirstLister struct {
	calls   atomic.Int32
	release chan struct{}
}

func (l *slowFirstLister) AllProposals(ctx context.Context, chainID, daoAddress string) ([]byte, error) {
	if l.calls.Add(1) == 1 {
		<-l.release
		return []byte(`[{"id":"OLD"}]`), nil
	}
	return []byte(threeProposals), nil
}

func TestRefreshWhilePollingIsNotOverwrittenByOlderTick(t *testing.T) {
	lister := &slowFirstLister{release: make(chan struct{})}
	store := New(Config{ChainID: testChain, DAOAddress: testDAO, Clock: clockwork.NewFakeClock()}, lister)

	require.NoError(t, store.Start())
	defer store.Stop()
	assert.Eventually(t, func() bool { return lister.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, []string{"C", "B", "A"}, ids(store.Proposals()))

	close(lister.release)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"C", "B", "A"}, ids(store.Proposals()))
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"open":             StatusOpen,
		"passed":           StatusPassed,
		"rejected":         StatusRejected,
		"executed":         StatusExecuted,
		" Open ":           StatusOpen,
		"":                 StatusUnknown,
		"execution_failed": StatusUnknown,
		"closed":           StatusUnknown,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseStatus(in), in)
	}
}
