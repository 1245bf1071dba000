package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/assessment"
	"github.com/lexsieve/lexsieve/internal/domain/message"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/domain/verdict"
	"github.com/lexsieve/lexsieve/internal/usecase/clarify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mocks ---

type memRuns struct {
	mu    sync.Mutex
	runs  map[string]domrun.Run
	order []string            // insertion order, oldest first
	ranks map[string][]string // run id -> archive ids in retrieval order
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]domrun.Run), ranks: make(map[string][]string)}
}

func (m *memRuns) Save(_ context.Context, r domrun.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID()]; !ok {
		m.order = append(m.order, r.ID())
	}
	m.runs[r.ID()] = r
	return nil
}

func (m *memRuns) Get(_ context.Context, id string) (domrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domrun.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return r, nil
}

func (m *memRuns) List(_ context.Context, limit int) ([]domrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domrun.Run, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	return out, nil
}

func (m *memRuns) SaveResultOrder(_ context.Context, runID string, archiveIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranks[runID] = archiveIDs
	return nil
}

func (m *memRuns) ResultOrder(_ context.Context, runID string) ([]string, []int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.ranks[runID]
	positions := make([]int, len(ids))
	for i := range ids {
		positions[i] = i + 1
	}
	return ids, positions, nil
}

func (m *memRuns) stored(t *testing.T, id string) domrun.Run {
	t.Helper()
	r, err := m.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("stored run %s: %v", id, err)
	}
	return r
}

type memMessages struct {
	mu   sync.Mutex
	byID map[string]message.Message
}

func newMemMessages() *memMessages {
	return &memMessages{byID: make(map[string]message.Message)}
}

func (m *memMessages) PutAll(_ context.Context, msgs []message.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if _, ok := m.byID[msg.ArchiveID()]; !ok {
			m.byID[msg.ArchiveID()] = msg
		}
	}
	return nil
}

func (m *memMessages) Get(_ context.Context, archiveID string) (message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[archiveID]
	if !ok {
		return message.Message{}, fmt.Errorf("message %s: %w", archiveID, domain.ErrMessageNotFound)
	}
	return msg, nil
}

func (m *memMessages) GetAll(_ context.Context, archiveIDs []string) ([]message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Message, len(archiveIDs))
	for i, id := range archiveIDs {
		msg, ok := m.byID[id]
		if !ok {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
		}
		out[i] = msg
	}
	return out, nil
}

type memAnalyses struct {
	mu       sync.Mutex
	verdicts map[string]map[string]verdict.Verdict
	putErr   map[string]error // archive id -> forced Put failure
}

func newMemAnalyses() *memAnalyses {
	return &memAnalyses{verdicts: make(map[string]map[string]verdict.Verdict)}
}

func (m *memAnalyses) Put(_ context.Context, runID, archiveID string, v verdict.Verdict) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putErr[archiveID]; err != nil {
		return false, err
	}
	if m.verdicts[runID] == nil {
		m.verdicts[runID] = make(map[string]verdict.Verdict)
	}
	if _, ok := m.verdicts[runID][archiveID]; ok {
		return false, nil
	}
	m.verdicts[runID][archiveID] = v
	return true, nil
}

func (m *memAnalyses) GetAll(_ context.Context, runID string, archiveIDs []string) ([]verdict.Verdict, []bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	verdicts := make([]verdict.Verdict, len(archiveIDs))
	present := make([]bool, len(archiveIDs))
	for i, id := range archiveIDs {
		v, ok := m.verdicts[runID][id]
		verdicts[i] = v
		present[i] = ok
	}
	return verdicts, present, nil
}

func (m *memAnalyses) count(runID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.verdicts[runID])
}

type stubGate struct {
	mu  sync.Mutex
	n   int
	out clarify.Outcome
	err error
}

func (g *stubGate) Evaluate(context.Context, string) (clarify.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.out, g.err
}

func (g *stubGate) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

type stubTranslator struct {
	mu      sync.Mutex
	n       int
	gotText string
	spec    spec.Spec
	err     error
}

func (tr *stubTranslator) Translate(_ context.Context, q question.Resolved, _ time.Time) (spec.Spec, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.n++
	tr.gotText = q.Text()
	return tr.spec, tr.err
}

func (tr *stubTranslator) calls() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.n
}

func (tr *stubTranslator) questionText() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.gotText
}

type stubArchive struct {
	mu   sync.Mutex
	n    int
	msgs []message.Message
	err  error
}

func (a *stubArchive) Fetch(context.Context, spec.Spec) ([]message.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	return a.msgs, a.err
}

func (a *stubArchive) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

type stubScorer struct {
	mu    sync.Mutex
	n     int
	judge func(ctx context.Context, target *spec.Identity, msg message.Message) (verdict.Verdict, error)
}

func (sc *stubScorer) Score(
	ctx context.Context, _ question.Resolved, target *spec.Identity, msg message.Message,
) (verdict.Verdict, error) {
	sc.mu.Lock()
	sc.n++
	sc.mu.Unlock()
	return sc.judge(ctx, target, msg)
}

func (sc *stubScorer) calls() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.n
}

type stubAssessor struct {
	mu      sync.Mutex
	n       int
	gotName string
	gotMsgs []message.Message
	a       assessment.Assessment
	err     error
}

func (as *stubAssessor) Synthesize(
	_ context.Context, personName string, msgs []message.Message,
) (assessment.Assessment, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.n++
	as.gotName = personName
	as.gotMsgs = msgs
	return as.a, as.err
}

func (as *stubAssessor) calls() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.n
}

// --- Fixtures ---

type fixture struct {
	runs     *memRuns
	messages *memMessages
	analyses *memAnalyses
	gate     *stubGate
	trans    *stubTranslator
	scorer   *stubScorer
	assessor *stubAssessor
	archive  *stubArchive
	svc      *Service
}

// newFixture wires an orchestrator over in-memory stores and stubbed stages:
// a gate that lets everything through, a translator producing a content
// specification, an archive returning three candidates, and a scorer that
// finds everything relevant.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runs:     newMemRuns(),
		messages: newMemMessages(),
		analyses: newMemAnalyses(),
		gate:     &stubGate{out: clarify.Specific()},
		trans:    &stubTranslator{spec: contentSpec(t)},
		assessor: &stubAssessor{a: testAssessment(t)},
		archive:  &stubArchive{msgs: threeMessages(t)},
	}
	f.scorer = &stubScorer{judge: func(_ context.Context, _ *spec.Identity, _ message.Message) (verdict.Verdict, error) {
		return relevantVerdict(t, 0.8), nil
	}}
	f.svc = New(f.runs, f.messages, f.analyses, f.gate, f.trans, f.scorer, f.assessor, f.archive, zap.NewNop())
	ids := 0
	f.svc.newID = func() string {
		ids++
		return fmt.Sprintf("run-%03d", ids)
	}
	return f
}

func contentSpec(t *testing.T) spec.Spec {
	t.Helper()
	s, err := spec.New(spec.Params{KeywordsAny: "lien, settlement"}, nil)
	if err != nil {
		t.Fatalf("contentSpec: %v", err)
	}
	return s
}

func identitySpec(t *testing.T) spec.Spec {
	t.Helper()
	s, err := spec.New(spec.Params{PostedBy: "Chris Johnson"}, nil)
	if err != nil {
		t.Fatalf("identitySpec: %v", err)
	}
	return s
}

func candidate(t *testing.T, archiveID, sender, subject string) message.Message {
	t.Helper()
	posted := time.Date(2024, 11, 2, 9, 30, 0, 0, time.UTC)
	msg, err := message.New(
		archiveID, sender, subject,
		"The lien resolved after the carrier stipulated to the fee split.",
		"lawnet", posted, false,
		"https://archive.example.com/"+archiveID,
	)
	if err != nil {
		t.Fatalf("candidate %s: %v", archiveID, err)
	}
	return msg
}

func threeMessages(t *testing.T) []message.Message {
	t.Helper()
	return []message.Message{
		candidate(t, "w-001", "Pat Alvarez", "Lien settlement strategy"),
		candidate(t, "w-002", "Chris Johnson", "Re: Lien settlement strategy"),
		candidate(t, "w-003", "Dana Wu", "Fee splits on resolved liens"),
	}
}

func relevantVerdict(t *testing.T, confidence float64) verdict.Verdict {
	t.Helper()
	v, err := verdict.New(true, confidence, "addresses the lien question directly")
	if err != nil {
		t.Fatalf("relevantVerdict: %v", err)
	}
	return v
}

func irrelevantVerdict(t *testing.T) verdict.Verdict {
	t.Helper()
	v, err := verdict.New(false, 0.2, "different practice area")
	if err != nil {
		t.Fatalf("irrelevantVerdict: %v", err)
	}
	return v
}

func testAssessment(t *testing.T) assessment.Assessment {
	t.Helper()
	a, err := assessment.New(87, "Recognized authority on lien resolution.", []string{"liens"})
	if err != nil {
		t.Fatalf("testAssessment: %v", err)
	}
	return a
}

// --- Tests ---

func TestCreate_SpecificQuestionRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, "What are common lien settlement procedures?")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Status() != domrun.StatusPending {
		t.Errorf("returned status = %q, want pending (execution is asynchronous)", r.Status())
	}
	if r.FollowUp() != "" {
		t.Errorf("unexpected follow-up %q", r.FollowUp())
	}
	f.svc.Wait()

	stored := f.runs.stored(t, r.ID())
	if stored.Status() != domrun.StatusCompleted {
		t.Fatalf("status = %q (failure %q), want completed", stored.Status(), stored.Failure())
	}
	if stored.Retrieved() != 3 || stored.Scored() != 3 || stored.Relevant() != 3 || stored.Degraded() != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want 3/3/3/0",
			stored.Retrieved(), stored.Scored(), stored.Relevant(), stored.Degraded())
	}
	if got := f.gate.calls(); got != 1 {
		t.Errorf("gate calls = %d, want 1", got)
	}
	if got := f.trans.questionText(); got != "What are common lien settlement procedures?" {
		t.Errorf("translator saw %q", got)
	}
	if f.analyses.count(r.ID()) != 3 {
		t.Errorf("stored verdicts = %d, want 3", f.analyses.count(r.ID()))
	}
}

func TestCreate_VagueQuestionStaysPending(t *testing.T) {
	f := newFixture(t)
	f.gate.out = clarify.Vague("Are you looking for messages BY this person or ABOUT them?")

	r, err := f.svc.Create(context.Background(), "Chris Johnson")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.svc.Wait()

	if r.Status() != domrun.StatusPending {
		t.Errorf("status = %q, want pending", r.Status())
	}
	if r.FollowUp() == "" {
		t.Error("follow-up not carried on the returned run")
	}
	stored := f.runs.stored(t, r.ID())
	if stored.Status() != domrun.StatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status())
	}
	if f.trans.calls() != 0 {
		t.Errorf("translator called %d times before clarification", f.trans.calls())
	}
	if f.archive.calls() != 0 {
		t.Errorf("archive called %d times before clarification", f.archive.calls())
	}
}

func TestCreate_EmptyQuestionRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("err = %v, want ErrInvalidQuestion", err)
	}
	if len(f.runs.runs) != 0 {
		t.Errorf("%d runs persisted for an invalid question", len(f.runs.runs))
	}
}

func TestCreate_GateErrorFailsTheRun(t *testing.T) {
	f := newFixture(t)
	f.gate.err = domain.ErrBudgetExhausted

	_, err := f.svc.Create(context.Background(), "What are common lien settlement procedures?")
	if !errors.Is(err, domain.ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	f.svc.Wait()

	// The id never reached the caller; the run must not dangle pending.
	stored := f.runs.stored(t, "run-001")
	if stored.Status() != domrun.StatusFailed {
		t.Errorf("stored status = %q, want failed", stored.Status())
	}
	if stored.Failure() != failureScreening {
		t.Errorf("failure = %q, want %q", stored.Failure(), failureScreening)
	}
}

func TestAnswer_FoldsOnceAndLaunches(t *testing.T) {
	f := newFixture(t)
	f.gate.out = clarify.Vague("BY this person or ABOUT them?")

	r, err := f.svc.Create(context.Background(), "Chris Johnson")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	answered, err := f.svc.Answer(context.Background(), r.ID(), "articles BY Chris Johnson")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !answered.Resolved().Folded() {
		t.Error("resolved question not marked folded")
	}
	f.svc.Wait()

	if got := f.gate.calls(); got != 1 {
		t.Errorf("gate calls = %d, want 1 (no second screening after the answer)", got)
	}
	want := "Chris Johnson. Specifically: articles BY Chris Johnson"
	if got := f.trans.questionText(); got != want {
		t.Errorf("translator saw %q, want %q", got, want)
	}
	if stored := f.runs.stored(t, r.ID()); stored.Status() != domrun.StatusCompleted {
		t.Errorf("status = %q (failure %q), want completed", stored.Status(), stored.Failure())
	}
}

func TestAnswer_UnknownRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Answer(context.Background(), "run-missing", "by him")
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestAnswer_EmptyAnswerRejected(t *testing.T) {
	f := newFixture(t)
	f.gate.out = clarify.Vague("BY or ABOUT?")
	r, err := f.svc.Create(context.Background(), "Chris Johnson")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Answer(context.Background(), r.ID(), "   "); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("err = %v, want ErrInvalidQuestion", err)
	}
	if stored := f.runs.stored(t, r.ID()); stored.Status() != domrun.StatusPending {
		t.Errorf("status = %q, want still pending", stored.Status())
	}
	f.svc.Wait()
}

func TestAnswer_WithoutPendingClarification(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Create(context.Background(), "What are common lien settlement procedures?")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.svc.Wait()

	// Completed by now: answering is a lifecycle conflict.
	if _, err := f.svc.Answer(context.Background(), r.ID(), "by him"); !errors.Is(err, domain.ErrRunTerminal) {
		t.Fatalf("err = %v, want ErrRunTerminal", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.gate.out = clarify.Vague("BY or ABOUT?") // keep runs pending, no execution
	ctx := context.Background()

	for _, q := range []string{"Chris Johnson", "Jane Smith", "Pat Alvarez"} {
		if _, err := f.svc.Create(ctx, q); err != nil {
			t.Fatalf("Create %q: %v", q, err)
		}
	}

	runs, err := f.svc.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].Question() != "Pat Alvarez" || runs[1].Question() != "Jane Smith" {
		t.Errorf("order = %q, %q; want newest first", runs[0].Question(), runs[1].Question())
	}
	f.svc.Wait()
}

func TestList_DefaultLimit(t *testing.T) {
	f := newFixture(t)
	f.svc.WithListLimit(1)
	f.gate.out = clarify.Vague("BY or ABOUT?")
	ctx := context.Background()

	for _, q := range []string{"Chris Johnson", "Jane Smith"} {
		if _, err := f.svc.Create(ctx, q); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	runs, err := f.svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len = %d, want the configured default of 1", len(runs))
	}
	f.svc.Wait()
}

func TestResults_OmitsUnscoredCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := domrun.New("run-x", "lien procedures", time.Now())
	if err != nil {
		t.Fatalf("New run: %v", err)
	}
	if err := f.runs.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	msgs := threeMessages(t)
	if err := f.messages.PutAll(ctx, msgs); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if err := f.runs.SaveResultOrder(ctx, "run-x", []string{"w-001", "w-002", "w-003"}); err != nil {
		t.Fatalf("SaveResultOrder: %v", err)
	}
	// w-002 has no verdict yet: scoring still in flight.
	if _, err := f.analyses.Put(ctx, "run-x", "w-001", relevantVerdict(t, 0.9)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.analyses.Put(ctx, "run-x", "w-003", irrelevantVerdict(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := f.svc.Results(ctx, "run-x")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].Position() != 1 || results[0].Message().ArchiveID() != "w-001" {
		t.Errorf("first = pos %d id %s", results[0].Position(), results[0].Message().ArchiveID())
	}
	if results[1].Position() != 3 || results[1].Message().ArchiveID() != "w-003" {
		t.Errorf("second = pos %d id %s", results[1].Position(), results[1].Message().ArchiveID())
	}
	if results[1].Verdict().Relevant() {
		t.Error("w-003 verdict should be irrelevant")
	}
}

func TestResults_UnknownRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Results(context.Background(), "run-missing")
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestMessage_ReturnsStoredCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "mechanics lien priority disputes"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.svc.Wait()

	msg, err := f.svc.Message(ctx, "w-002")
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if msg.Sender() != "Chris Johnson" {
		t.Errorf("sender = %q, want %q", msg.Sender(), "Chris Johnson")
	}
}

func TestMessage_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Message(context.Background(), "w-404")
	if !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestCancel_PendingRun(t *testing.T) {
	f := newFixture(t)
	f.gate.out = clarify.Vague("BY or ABOUT?")
	ctx := context.Background()

	r, err := f.svc.Create(ctx, "Chris Johnson")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Cancel(ctx, r.ID()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	stored := f.runs.stored(t, r.ID())
	if stored.Status() != domrun.StatusFailed {
		t.Errorf("status = %q, want failed", stored.Status())
	}
	if stored.Failure() != failureCanceled {
		t.Errorf("failure = %q, want %q", stored.Failure(), failureCanceled)
	}

	if err := f.svc.Cancel(ctx, r.ID()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second cancel: %v, want ErrInvalidTransition", err)
	}
	f.svc.Wait()
}

func TestCancel_UnknownRun(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Cancel(context.Background(), "run-missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}
