package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
	"minerva/internal/domain/insight"
	"minerva/internal/events"
	"minerva/pkg/errors"
)

// fakeTracker enforces the lifecycle state machine in memory
type fakeTracker struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*batch.Batch
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{batches: make(map[uuid.UUID]*batch.Batch)}
}

func (f *fakeTracker) add(ticker string) *batch.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &batch.Batch{
		ID:        uuid.New(),
		Ticker:    ticker,
		Status:    batch.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	f.batches[b.ID] = b
	return b
}

func (f *fakeTracker) Get(_ context.Context, id uuid.UUID) (*batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeTracker) transition(id uuid.UUID, to batch.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return errors.ErrNotFound
	}
	if !b.Status.CanTransitionTo(to) {
		return errors.Wrapf(errors.ErrInvalidTransition, "batch is %s", b.Status)
	}
	b.Status = to
	if to.IsTerminal() {
		now := time.Now().UTC()
		b.CompletedAt = &now
	}
	return nil
}

func (f *fakeTracker) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return f.transition(id, batch.StatusProcessing)
}

func (f *fakeTracker) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return f.transition(id, batch.StatusCompleted)
}

func (f *fakeTracker) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	if err := f.transition(id, batch.StatusFailed); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.batches[id]
	if b.ErrorLog == nil {
		b.ErrorLog = &errorMessage
	} else {
		joined := *b.ErrorLog + "\n" + errorMessage
		b.ErrorLog = &joined
	}
	return nil
}

// fakeResults is a plain in-memory result store
type fakeResults struct {
	mu      sync.Mutex
	results map[uuid.UUID]map[agentresult.AgentType]*agentresult.Result
}

func newFakeResults() *fakeResults {
	return &fakeResults{results: make(map[uuid.UUID]map[agentresult.AgentType]*agentresult.Result)}
}

func (f *fakeResults) put(batchID uuid.UUID, t agentresult.AgentType, status agentresult.Status, payload string, errMsg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results[batchID] == nil {
		f.results[batchID] = make(map[agentresult.AgentType]*agentresult.Result)
	}
	r := &agentresult.Result{
		ID:        uuid.New(),
		BatchID:   batchID,
		AgentType: t,
		Status:    status,
		Payload:   json.RawMessage(payload),
	}
	if errMsg != "" {
		r.Error = &errMsg
	}
	f.results[batchID][t] = r
}

func (f *fakeResults) Upsert(_ context.Context, r *agentresult.Result) (bool, error) {
	f.put(r.BatchID, r.AgentType, r.Status, string(r.Payload), "")
	return true, nil
}

func (f *fakeResults) Overwrite(_ context.Context, r *agentresult.Result) error {
	_, err := f.Upsert(context.Background(), r)
	return err
}

func (f *fakeResults) Get(_ context.Context, batchID uuid.UUID, t agentresult.AgentType) (*agentresult.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[batchID][t]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResults) GetByBatch(_ context.Context, batchID uuid.UUID) ([]*agentresult.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*agentresult.Result, 0)
	for _, r := range f.results[batchID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// fakeInsights enforces the per-batch uniqueness constraint
type fakeInsights struct {
	mu       sync.Mutex
	byBatch  map[uuid.UUID]*insight.Insight
	creates  int
	rejected int
}

func newFakeInsights() *fakeInsights {
	return &fakeInsights{byBatch: make(map[uuid.UUID]*insight.Insight)}
}

func (f *fakeInsights) CreateIfAbsent(_ context.Context, ins *insight.Insight) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byBatch[ins.BatchID]; ok {
		f.rejected++
		return false, nil
	}
	cp := *ins
	f.byBatch[ins.BatchID] = &cp
	f.creates++
	return true, nil
}

func (f *fakeInsights) GetByBatch(_ context.Context, batchID uuid.UUID) (*insight.Insight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ins, ok := f.byBatch[batchID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *ins
	return &cp, nil
}

// capturePublisher records published events
type capturePublisher struct {
	mu        sync.Mutex
	completed []events.BatchCompletedEvent
	failed    []events.BatchFailedEvent
}

func (p *capturePublisher) PublishBatchCompleted(_ context.Context, e events.BatchCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
	return nil
}

func (p *capturePublisher) PublishBatchFailed(_ context.Context, e events.BatchFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
	return nil
}

type fixture struct {
	tracker  *fakeTracker
	results  *fakeResults
	insights *fakeInsights
	pub      *capturePublisher
	svc      *Service
}

func newFixture(t *testing.T, required ...agentresult.AgentType) *fixture {
	t.Helper()
	if len(required) == 0 {
		required = []agentresult.AgentType{agentresult.AgentMarketData, agentresult.AgentPatent}
	}

	f := &fixture{
		tracker:  newFakeTracker(),
		results:  newFakeResults(),
		insights: newFakeInsights(),
		pub:      &capturePublisher{},
	}

	svc, err := NewService(f.tracker, f.results, f.insights, nil, required, nil, 0, f.pub)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewService_EmptyRequiredSet(t *testing.T) {
	_, err := NewService(newFakeTracker(), newFakeResults(), newFakeInsights(), nil, nil, nil, 0, nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestNewService_UnknownRequiredAgent(t *testing.T) {
	_, err := NewService(newFakeTracker(), newFakeResults(), newFakeInsights(), nil,
		[]agentresult.AgentType{"sentiment"}, nil, 0, nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestCheckBatch_NotReadyWhileResultsMissing(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{"bars":250}`, "")

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusProcessing, got.Status)
	assert.Equal(t, 0, f.insights.creates)
}

func TestCheckBatch_NotReadyWhileResultProcessing(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{}`, "")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusProcessing, `{}`, "")

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusProcessing, got.Status)
	assert.Equal(t, 0, f.insights.creates)
}

func TestCheckBatch_CompletesWhenAllFinished(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{"bars":250}`, "")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusFinished, `{"patent_count":12}`, "")

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	ins, err := f.insights.GetByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, ins.Summary, "AAPL")

	var payload struct {
		Ticker string                     `json:"ticker"`
		Agents map[string]json.RawMessage `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(ins.Payload, &payload))
	assert.Equal(t, "AAPL", payload.Ticker)
	assert.Contains(t, payload.Agents, "market_data")
	assert.Contains(t, payload.Agents, "patent")

	require.Len(t, f.pub.completed, 1)
	assert.Equal(t, b.ID, f.pub.completed[0].BatchID)
}

func TestCheckBatch_OrderOfArrivalDoesNotMatter(t *testing.T) {
	outcome := func(first, second agentresult.AgentType) (batch.Status, int) {
		f := newFixture(t)
		b := f.tracker.add("MSFT")
		ctx := context.Background()

		f.results.put(b.ID, first, agentresult.StatusFinished, `{}`, "")
		require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

		f.results.put(b.ID, second, agentresult.StatusFinished, `{}`, "")
		require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

		got, _ := f.tracker.Get(ctx, b.ID)
		return got.Status, f.insights.creates
	}

	statusAB, insightsAB := outcome(agentresult.AgentMarketData, agentresult.AgentPatent)
	statusBA, insightsBA := outcome(agentresult.AgentPatent, agentresult.AgentMarketData)

	assert.Equal(t, batch.StatusCompleted, statusAB)
	assert.Equal(t, statusAB, statusBA)
	assert.Equal(t, 1, insightsAB)
	assert.Equal(t, insightsAB, insightsBA)
}

func TestCheckBatch_FailedAgentFailsBatchWithContext(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{}`, "")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusFailed, ``, "uspto unreachable")

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.Contains(t, *got.ErrorLog, "patent")
	assert.Contains(t, *got.ErrorLog, "uspto unreachable")

	assert.Equal(t, 0, f.insights.creates)
	require.Len(t, f.pub.failed, 1)
	assert.Contains(t, f.pub.failed[0].Error, "uspto unreachable")
}

func TestCheckBatch_MultipleFailuresAllReported(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFailed, ``, "no price history")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusFailed, ``, "uspto unreachable")

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))

	got, _ := f.tracker.Get(ctx, b.ID)
	require.NotNil(t, got.ErrorLog)
	assert.Contains(t, *got.ErrorLog, "no price history")
	assert.Contains(t, *got.ErrorLog, "uspto unreachable")
}

func TestCheckBatch_RedundantTriggersConverge(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{}`, "")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusFinished, `{}`, "")

	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.CheckBatch(ctx, b.ID))
	}

	assert.Equal(t, 1, f.insights.creates)
	assert.Len(t, f.pub.completed, 1)
}

func TestCheckBatch_ConcurrentTriggersProduceOneInsight(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("NVDA")
	ctx := context.Background()

	f.results.put(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{}`, "")
	f.results.put(b.ID, agentresult.AgentPatent, agentresult.StatusFinished, `{}`, "")

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.CheckBatch(ctx, b.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, f.insights.creates)
	assert.Len(t, f.pub.completed, 1)

	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusCompleted, got.Status)
}

func TestCheckBatch_TerminalBatchIsNoop(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	require.NoError(t, f.tracker.MarkProcessing(ctx, b.ID))
	require.NoError(t, f.tracker.MarkFailed(ctx, b.ID, "reaped"))

	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))
	assert.Equal(t, 0, f.insights.creates)
}

func TestCheckBatch_UnknownBatch(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CheckBatch(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCheckBatch_MovesPendingThroughProcessing(t *testing.T) {
	f := newFixture(t)
	b := f.tracker.add("AAPL")
	ctx := context.Background()

	// No results yet: the trigger still activates the batch
	require.NoError(t, f.svc.CheckBatch(ctx, b.ID))
	got, _ := f.tracker.Get(ctx, b.ID)
	assert.Equal(t, batch.StatusProcessing, got.Status)
}

func TestPayloadJoinSynthesizer_SkipsNonFinished(t *testing.T) {
	b := &batch.Batch{ID: uuid.New(), Ticker: "AAPL"}
	results := []*agentresult.Result{
		{AgentType: agentresult.AgentMarketData, Status: agentresult.StatusFinished, Payload: json.RawMessage(`{"bars":1}`)},
		{AgentType: agentresult.AgentPatent, Status: agentresult.StatusFailed},
	}

	summary, payload, err := PayloadJoinSynthesizer{}.Synthesize(context.Background(), b, results)
	require.NoError(t, err)
	assert.Contains(t, summary, "AAPL")

	var decoded struct {
		Agents map[string]json.RawMessage `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Contains(t, decoded.Agents, "market_data")
	assert.NotContains(t, decoded.Agents, "patent")
}
