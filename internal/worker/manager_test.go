package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"promptmaster/internal/models"
	"promptmaster/internal/prompt"
	"promptmaster/internal/service/ai"
	"promptmaster/internal/service/assistant"
)

type fakeResponder struct {
	mu        sync.Mutex
	order     []string
	active    int
	maxActive int
	gate      chan struct{}
	started   chan string
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{
		gate:    make(chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *fakeResponder) Dispatch(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	f.started <- input
	if strings.HasPrefix(input, "block") {
		<-f.gate
	}

	f.mu.Lock()
	f.order = append(f.order, input)
	f.active--
	f.mu.Unlock()
	return ai.Result{Text: "ai: " + input}
}

func newTestManager(t *testing.T, responder Responder, cfg DispatcherConfig) (*Manager, *assistant.Service) {
	t.Helper()
	asst := assistant.NewService(prompt.Default())
	manager := NewManager(asst, responder, cfg)
	t.Cleanup(manager.Stop)
	return manager, asst
}

func newSession(t *testing.T, asst *assistant.Service, mode models.Mode) string {
	t.Helper()
	session, _, err := asst.CreateSession(context.Background(), mode)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	return session.ID
}

func waitStarted(t *testing.T, f *fakeResponder, want string) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != want {
			t.Fatalf("expected %q to start, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to start", want)
	}
}

func waitPending(t *testing.T, m *Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.dispatcher.Pending() != want {
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, want %d", m.dispatcher.Pending(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTurnLogsUserAndAssistantMessages(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4})
	sessionID := newSession(t, asst, models.ModeQA)

	var accepted *models.Message
	res, err := manager.Turn(TurnRequest{
		Context:    context.Background(),
		SessionID:  sessionID,
		Content:    "What is the capital of France?",
		OnAccepted: func(msg *models.Message) { accepted = msg },
	})
	if err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	if res.AssistantMessage == nil || res.AssistantMessage.Content != "ai: What is the capital of France?" {
		t.Fatalf("unexpected assistant message: %#v", res.AssistantMessage)
	}
	if accepted == nil || accepted.ID != res.UserMessage.ID {
		t.Fatalf("OnAccepted not called with the user message: %#v", accepted)
	}
	if res.UserMessage.Style != models.StyleConcise || res.UserMessage.Mode != models.ModeQA {
		t.Fatalf("turn did not use session mode/style: %#v", res.UserMessage)
	}

	msgs, err := asst.Messages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Messages error: %v", err)
	}
	// greeting, user, assistant
	if len(msgs) != 3 || msgs[1].Role != models.RoleUser || msgs[2].Role != models.RoleAssistant {
		t.Fatalf("unexpected log: %#v", msgs)
	}
}

func TestTurnValidation(t *testing.T) {
	manager, asst := newTestManager(t, newFakeResponder(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4})
	sessionID := newSession(t, asst, models.ModeSummarize)

	if _, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "  \n"}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "hi", Style: models.StylePoem}); !errors.Is(err, prompt.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if _, err := manager.Turn(TurnRequest{SessionID: "missing", Content: "hi"}); !errors.Is(err, assistant.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTurnsOfOneSessionRunInOrder(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 3, MaxWorkers: 3, QueueSize: 8})
	sessionID := newSession(t, asst, models.ModeQA)

	var wg sync.WaitGroup
	submit := func(content string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: content}); err != nil {
				t.Errorf("Turn(%s) error: %v", content, err)
			}
		}()
	}

	submit("block-first")
	waitStarted(t, responder, "block-first")
	submit("second")
	waitPending(t, manager, 1)
	submit("third")
	waitPending(t, manager, 2)

	close(responder.gate)
	wg.Wait()

	responder.mu.Lock()
	defer responder.mu.Unlock()
	want := []string{"block-first", "second", "third"}
	if strings.Join(responder.order, ",") != strings.Join(want, ",") {
		t.Fatalf("expected order %v, got %v", want, responder.order)
	}
	if responder.maxActive != 1 {
		t.Fatalf("turns of one session overlapped: max active %d", responder.maxActive)
	}
}

func TestOtherSessionsProgressWhileOneIsBusy(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 2, MaxWorkers: 2, QueueSize: 8})
	busy := newSession(t, asst, models.ModeQA)
	other := newSession(t, asst, models.ModeCreative)

	done := make(chan error, 1)
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: busy, Content: "block"})
		done <- err
	}()
	waitStarted(t, responder, "block")

	res, err := manager.Turn(TurnRequest{SessionID: other, Content: "a poem about rain", Style: models.StylePoem})
	if err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	if res.AssistantMessage.Mode != models.ModeCreative || res.AssistantMessage.Style != models.StylePoem {
		t.Fatalf("unexpected reply: %#v", res.AssistantMessage)
	}

	close(responder.gate)
	if err := <-done; err != nil {
		t.Fatalf("blocked turn error: %v", err)
	}
}

func TestQueueOverflowReturnsBusy(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1})
	sessionID := newSession(t, asst, models.ModeQA)

	results := make(chan error, 2)
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "block-1"})
		results <- err
	}()
	waitStarted(t, responder, "block-1")
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "queued"})
		results <- err
	}()
	waitPending(t, manager, 1)

	if _, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "overflow"}); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}

	close(responder.gate)
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Fatalf("turn error: %v", err)
		}
	}
}

func TestPurgeCancelsQueuedTurns(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4})
	sessionID := newSession(t, asst, models.ModeQA)

	first := make(chan error, 1)
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "block"})
		first <- err
	}()
	waitStarted(t, responder, "block")

	queued := make(chan error, 1)
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "never runs"})
		queued <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for manager.dispatcher.Queued(sessionID) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("turn was not queued behind the running one")
		}
		time.Sleep(5 * time.Millisecond)
	}

	manager.Purge(sessionID)
	if err := <-queued; !errors.Is(err, ErrTurnCanceled) {
		t.Fatalf("expected ErrTurnCanceled, got %v", err)
	}

	close(responder.gate)
	if err := <-first; err != nil {
		t.Fatalf("running turn error: %v", err)
	}
	if manager.dispatcher.Pending() != 0 {
		t.Fatalf("pending jobs left after purge: %d", manager.dispatcher.Pending())
	}
}

func TestFallbackReplyIsLogged(t *testing.T) {
	fallback := responderFunc(func(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result {
		return ai.Result{Text: ai.FallbackCommunicationError, Err: ai.ErrBackend, Kind: ai.FailureBackend}
	})
	manager, asst := newTestManager(t, fallback, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 2})
	sessionID := newSession(t, asst, models.ModeQA)

	res, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "hello"})
	if err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	if res.AssistantMessage.Content != ai.FallbackCommunicationError {
		t.Fatalf("expected fallback text, got %q", res.AssistantMessage.Content)
	}
	if !errors.Is(res.Result.Err, ai.ErrBackend) {
		t.Fatalf("expected ErrBackend signal, got %v", res.Result.Err)
	}
}

type responderFunc func(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result

func (f responderFunc) Dispatch(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result {
	return f(ctx, input, mode, style)
}

func TestPoolRetiresIdleWorkersAboveMin(t *testing.T) {
	pool := newJobChannelPool(1, 3, time.Hour, func(Job) {})
	defer pool.shutdown()

	var chans []chan Job
	for i := 0; i < 3; i++ {
		ch, ok := pool.acquire()
		if !ok {
			t.Fatalf("acquire failed on an open pool")
		}
		chans = append(chans, ch)
	}
	for _, ch := range chans {
		pool.Release(ch)
	}
	if running, idle := pool.size(); running != 3 || idle != 3 {
		t.Fatalf("expected 3 running/3 idle, got %d/%d", running, idle)
	}

	pool.shutdownExpired(time.Now().Add(2 * time.Hour))

	deadline := time.Now().Add(2 * time.Second)
	for {
		running, idle := pool.size()
		if running == 1 && idle == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 running/1 idle after expiry, got %d/%d", running, idle)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCanceledQueuedTurnReturnsPromptly(t *testing.T) {
	responder := newFakeResponder()
	manager, asst := newTestManager(t, responder, DispatcherConfig{MinWorkers: 2, MaxWorkers: 2, QueueSize: 4})
	sessionID := newSession(t, asst, models.ModeQA)

	first := make(chan error, 1)
	go func() {
		_, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "block"})
		first <- err
	}()
	waitStarted(t, responder, "block")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := manager.Turn(TurnRequest{Context: ctx, SessionID: sessionID, Content: "too late"})
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTurnCanceled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrTurnCanceled wrapping the deadline, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("queued turn returned %v after its deadline", elapsed)
	}
	waitPending(t, manager, 0)
	if n := manager.dispatcher.Queued(sessionID); n != 0 {
		t.Fatalf("canceled turn left in the queue: %d", n)
	}

	close(responder.gate)
	if err := <-first; err != nil {
		t.Fatalf("running turn error: %v", err)
	}
	responder.mu.Lock()
	order := append([]string(nil), responder.order...)
	responder.mu.Unlock()
	if len(order) != 1 || order[0] != "block" {
		t.Fatalf("canceled turn was dispatched: %v", order)
	}
	msgs, err := asst.Messages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Messages error: %v", err)
	}
	for _, m := range msgs {
		if m.Content == "too late" {
			t.Fatalf("canceled turn was logged: %#v", m)
		}
	}
}

func TestTurnAfterStopFails(t *testing.T) {
	manager, asst := newTestManager(t, newFakeResponder(), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4})
	sessionID := newSession(t, asst, models.ModeQA)

	manager.Stop()
	if _, err := manager.Turn(TurnRequest{SessionID: sessionID, Content: "hello"}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestStopWhileSubmittingNeverStrandsTurns(t *testing.T) {
	slow := responderFunc(func(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result {
		time.Sleep(5 * time.Millisecond)
		return ai.Result{Text: "ai: " + input}
	})
	manager, asst := newTestManager(t, slow, DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 64})

	const turns = 32
	sessions := make([]string, 4)
	for i := range sessions {
		sessions[i] = newSession(t, asst, models.ModeQA)
	}

	errs := make(chan error, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.Turn(TurnRequest{SessionID: sessions[i%len(sessions)], Content: "hi"})
			errs <- err
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	manager.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("turns still waiting after Stop")
	}
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrDispatcherClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestPoolShutdownStopsBusyWorkers(t *testing.T) {
	gate := make(chan struct{})
	pool := newJobChannelPool(0, 2, time.Hour, func(Job) { <-gate })

	ch, ok := pool.acquire()
	if !ok {
		t.Fatalf("acquire failed on an open pool")
	}
	ch <- Job{Type: Turn}

	pool.shutdown()
	if _, ok := pool.acquire(); ok {
		t.Fatalf("acquire succeeded after shutdown")
	}
	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for {
		running, idle := pool.size()
		if running == 0 && idle == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("busy worker kept running after shutdown: %d running/%d idle", running, idle)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
