package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/conversations"
	"github.com/JaimeStill/agent-chat/internal/files"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/metrics"
	"github.com/JaimeStill/agent-chat/internal/pipeline"
	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/JaimeStill/agent-chat/internal/subscriptions"
	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/google/uuid"
)

// Deps are the collaborators of the engine. Conversations, Files, and
// Budget are optional.
type Deps struct {
	Agents        agents.System
	Conversations conversations.System
	Files         files.System
	Messages      messages.Repository
	Subscriptions *subscriptions.Manager
	Runner        *pipeline.Runner
	Budget        *pipeline.Budget

	// FileTokenLimit caps attached file text handed to agents.
	FileTokenLimit int
	PersistTimeout time.Duration
	Logger         *slog.Logger
}

// failedSend is a message waiting for a manual retry. turn is set for user
// messages whose pipeline never started.
type failedSend struct {
	msg  messages.Message
	turn *Turn
}

type engine struct {
	agents         agents.System
	conversations  conversations.System
	files          files.System
	repo           messages.Repository
	subs           *subscriptions.Manager
	runner         *pipeline.Runner
	budget         *pipeline.Budget
	fileTokenLimit int
	persistTimeout time.Duration
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*Turn
	failed map[string]failedSend
	closed bool
}

// New creates the chat System.
func New(deps Deps) System {
	ctx, cancel := context.WithCancel(context.Background())

	timeout := deps.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &engine{
		agents:         deps.Agents,
		conversations:  deps.Conversations,
		files:          deps.Files,
		repo:           deps.Messages,
		subs:           deps.Subscriptions,
		runner:         deps.Runner,
		budget:         deps.Budget,
		fileTokenLimit: deps.FileTokenLimit,
		persistTimeout: timeout,
		logger:         deps.Logger.With("system", "chat"),
		ctx:            ctx,
		cancel:         cancel,
		runs:           make(map[string]*Turn),
		failed:         make(map[string]failedSend),
	}
}

func (e *engine) Start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		e.shutdown()
	})
}

func (e *engine) SendUserMessage(ctx context.Context, cmd SendCommand) (*Turn, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" && cmd.FileID == nil {
		return nil, ErrEmptyMessage
	}

	if e.conversations != nil {
		if _, err := e.conversations.Find(ctx, cmd.ConversationID); err != nil {
			return nil, err
		}
	}

	var snapshot []agents.Agent
	if len(cmd.AgentIDs) > 0 {
		var err error
		snapshot, err = e.agents.Snapshot(ctx, cmd.AgentIDs)
		if err != nil {
			return nil, err
		}
	}

	prompt, err := e.promptText(ctx, text, cmd.FileID)
	if err != nil {
		return nil, err
	}

	handle, err := e.subs.Open(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}

	user := messages.Message{
		ID:             messages.NewID(),
		ConversationID: cmd.ConversationID,
		Author:         messages.AuthorUser,
		Content:        text,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		FileID:         cmd.FileID,
		Status:         messages.StatusPending,
	}

	if _, err := handle.Store().AppendLocal(user); err != nil {
		handle.Close()
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(messages.AuthorUser)).Inc()

	turn := newTurn(user, snapshot, prompt)
	if err := e.launch(turn, handle, true); err != nil {
		return nil, err
	}

	e.logger.Info("turn started", "turn_id", turn.ID, "conversation_id", turn.ConversationID, "agents", len(snapshot))
	return turn, nil
}

func (e *engine) Subscribe(ctx context.Context, conversationID uuid.UUID, fn func(Update)) (func(), error) {
	handle, err := e.subs.Open(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stopStore := handle.Store().Listen(func(c messages.Change) {
		fn(Update{Kind: UpdateMessages, Change: &c})
	})
	stopTypers := handle.Presence().Listen(func(entries []presence.Entry) {
		fn(Update{Kind: UpdateTypers, Typers: entries})
	})

	stop := make(chan struct{})
	go func() {
		select {
		case <-stop:
		case <-handle.Done():
			select {
			case <-stop:
			default:
				fn(Update{Kind: UpdateClosed})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			stopStore()
			stopTypers()
			handle.Close()
		})
	}, nil
}

func (e *engine) Messages(conversationID uuid.UUID) []messages.Message {
	store, _, ok := e.subs.Lookup(conversationID)
	if !ok {
		return nil
	}
	return store.Messages()
}

func (e *engine) LiveTypers(conversationID uuid.UUID, exclude string) []presence.Entry {
	_, coord, ok := e.subs.Lookup(conversationID)
	if !ok {
		return nil
	}
	return coord.LiveTypers(exclude)
}

func (e *engine) NotifyTyping(ctx context.Context, conversationID uuid.UUID, participantID, displayName string) error {
	if strings.TrimSpace(participantID) == "" {
		return ErrMissingSender
	}

	if _, coord, ok := e.subs.Lookup(conversationID); ok {
		return coord.NotifyTyping(ctx, participantID, displayName)
	}

	handle, err := e.subs.Open(ctx, conversationID)
	if err != nil {
		return err
	}
	defer handle.Close()
	return handle.Presence().NotifyTyping(ctx, participantID, displayName)
}

func (e *engine) LoadPage(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) (int, bool, error) {
	store, _, ok := e.subs.Lookup(conversationID)
	if !ok {
		return 0, false, ErrNotOpen
	}
	if before == nil {
		if oldest, ok := store.Oldest(); ok {
			before = &oldest
		}
	}
	return store.LoadPage(ctx, before, limit)
}

func (e *engine) History(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]messages.Message, bool, error) {
	return e.repo.Page(ctx, conversationID, before, limit)
}

func (e *engine) EditMessage(ctx context.Context, messageID, text string) (*messages.Message, error) {
	text = strings.TrimSpace(text)

	msg, err := e.repo.Find(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Author != messages.AuthorUser {
		return nil, ErrNotEditable
	}
	if text == "" && msg.FileID == nil {
		return nil, ErrEmptyMessage
	}

	msg.Content = text
	updated, err := e.repo.Update(ctx, *msg)
	if err != nil {
		return nil, err
	}

	e.reconcileLocal(messages.Event{
		Kind: messages.EventUpdate, ConversationID: updated.ConversationID, MessageID: updated.ID, Message: updated,
	})
	e.logger.Info("message edited", "message_id", updated.ID, "conversation_id", updated.ConversationID)
	return updated, nil
}

func (e *engine) DeleteMessage(ctx context.Context, messageID string) error {
	e.mu.Lock()
	entry, unsent := e.failed[messageID]
	e.mu.Unlock()

	var conversationID uuid.UUID
	switch msg, err := e.repo.Find(ctx, messageID); {
	case err == nil:
		conversationID = msg.ConversationID
		if err := e.repo.Delete(ctx, conversationID, messageID); err != nil {
			return err
		}
	case errors.Is(err, messages.ErrNotFound) && unsent:
		conversationID = entry.msg.ConversationID
	default:
		return err
	}

	if unsent {
		e.mu.Lock()
		delete(e.failed, messageID)
		e.mu.Unlock()
	}

	e.reconcileLocal(messages.Event{Kind: messages.EventDelete, ConversationID: conversationID, MessageID: messageID})
	e.logger.Info("message deleted", "message_id", messageID, "conversation_id", conversationID)
	return nil
}

// reconcileLocal applies a change to the open Store without waiting for
// the broadcast; the echo is idempotent.
func (e *engine) reconcileLocal(ev messages.Event) {
	if store, _, ok := e.subs.Lookup(ev.ConversationID); ok {
		store.Reconcile(ev)
	}
}

func (e *engine) Cancel(runID string) error {
	e.mu.Lock()
	turn, ok := e.runs[runID]
	e.mu.Unlock()

	if !ok {
		return ErrRunNotFound
	}
	turn.cancel()
	e.logger.Info("turn cancel requested", "turn_id", runID)
	return nil
}

func (e *engine) Retry(ctx context.Context, messageID string) (*Turn, error) {
	e.mu.Lock()
	entry, ok := e.failed[messageID]
	if ok {
		delete(e.failed, messageID)
	}
	e.mu.Unlock()

	if !ok {
		return nil, ErrNotRetryable
	}

	handle, err := e.subs.Open(ctx, entry.msg.ConversationID)
	if err != nil {
		e.remember(entry)
		return nil, err
	}

	store := handle.Store()
	msg, ok := store.Requeue(messageID)
	if !ok {
		msg = entry.msg
		msg.Status = messages.StatusPending
		if _, err := store.AppendLocal(msg); err != nil {
			e.remember(entry)
			handle.Close()
			return nil, err
		}
	}

	if err := e.persist(ctx, store, msg); err != nil {
		entry.msg = msg
		e.remember(entry)
		handle.Close()
		return nil, err
	}

	if entry.turn == nil {
		handle.Close()
		return nil, nil
	}

	turn := newTurn(msg, entry.turn.agents, entry.turn.text)
	if err := e.launch(turn, handle, false); err != nil {
		return nil, err
	}
	return turn, nil
}

func (e *engine) Forget(ctx context.Context, conversationID uuid.UUID) {
	e.mu.Lock()
	for _, turn := range e.runs {
		if turn.ConversationID == conversationID {
			turn.cancel()
		}
	}
	for id, entry := range e.failed {
		if entry.msg.ConversationID == conversationID {
			delete(e.failed, id)
		}
	}
	e.mu.Unlock()

	if p, ok := e.repo.(closedPublisher); ok {
		p.PublishClosed(ctx, conversationID)
	}
	e.subs.Invalidate(conversationID)
	e.logger.Info("conversation released", "conversation_id", conversationID)
}

// closedPublisher is satisfied by messages.Publisher.
type closedPublisher interface {
	PublishClosed(ctx context.Context, conversationID uuid.UUID)
}

// launch takes ownership of handle and runs turn in the background.
func (e *engine) launch(turn *Turn, handle *subscriptions.Handle, persistUser bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		handle.Close()
		return ErrShuttingDown
	}
	runCtx, cancel := context.WithCancel(e.ctx)
	turn.cancel = cancel
	e.runs[turn.ID] = turn
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		result, err := e.execute(runCtx, turn, handle.Store(), persistUser)

		e.mu.Lock()
		delete(e.runs, turn.ID)
		e.mu.Unlock()
		cancel()
		handle.Close()

		turn.finish(result, err)
	}()
	return nil
}

// execute persists the user message if needed, then runs the pipeline.
// Messages are appended and persisted in production order on this
// goroutine.
func (e *engine) execute(ctx context.Context, turn *Turn, store *messages.Store, persistUser bool) (pipeline.Result, error) {
	if persistUser {
		if err := e.persist(ctx, store, turn.UserMessage); err != nil {
			e.remember(failedSend{msg: turn.UserMessage, turn: turn})
			return pipeline.Result{}, err
		}
	}

	if len(turn.agents) == 0 {
		return pipeline.Result{}, nil
	}

	emit := func(m messages.Message) {
		m.Status = messages.StatusPending
		if _, err := store.AppendLocal(m); err != nil {
			e.logger.Error("agent message rejected", "turn_id", turn.ID, "message_id", m.ID, "error", err)
			return
		}
		metrics.MessagesAppended.WithLabelValues(string(messages.AuthorAgent)).Inc()

		if err := e.persist(ctx, store, m); err != nil {
			e.remember(failedSend{msg: m})
		}
	}

	result, err := e.runner.Run(ctx, pipeline.Turn{
		ID:             turn.ID,
		ConversationID: turn.ConversationID,
		UserMessageID:  turn.UserMessage.ID,
		Text:           turn.text,
		Agents:         turn.agents,
	}, emit)

	if err != nil {
		e.logger.Info("turn ended early", "turn_id", turn.ID, "error", err)
	}
	return result, err
}

// persist writes msg and records the outcome on the Store. Persistence is
// not bound to run cancellation, so an emitted message is always written.
func (e *engine) persist(ctx context.Context, store *messages.Store, msg messages.Message) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.persistTimeout)
	defer cancel()

	if _, err := e.repo.Append(pctx, msg); err != nil {
		store.MarkFailed(msg.ID)
		metrics.PersistFailures.Inc()
		e.logger.Error("persist message failed", "message_id", msg.ID, "conversation_id", msg.ConversationID, "error", err)
		return fmt.Errorf("persist message: %w", err)
	}

	store.MarkSent(msg.ID)
	return nil
}

func (e *engine) remember(entry failedSend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed[entry.msg.ID] = entry
}

// promptText appends the attached file's text, cut to the file token
// limit, to the user text.
func (e *engine) promptText(ctx context.Context, text string, fileID *uuid.UUID) (string, error) {
	if fileID == nil || e.files == nil {
		return text, nil
	}

	f, err := e.files.Find(ctx, *fileID)
	if err != nil {
		return "", err
	}

	body, err := e.files.Text(ctx, *fileID)
	if err != nil {
		return "", err
	}
	if body == "" {
		return fmt.Sprintf("%s\n\nAttached file: %s (%s)", text, f.Name, f.ContentType), nil
	}

	if e.budget != nil {
		body = e.budget.Truncate(body, e.fileTokenLimit)
	}
	return fmt.Sprintf("%s\n\nAttached file: %s\n%s", text, f.Name, body), nil
}

func (e *engine) shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.logger.Info("chat system shut down")
}
