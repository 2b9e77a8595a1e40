package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"codechat/internal/api"
	"codechat/internal/chat"
	"codechat/internal/creds"
	"codechat/internal/session"
)

// fakeBackend stands in for the whole gateway: session, chat, execution and
// conversation management in one scripted struct.
type fakeBackend struct {
	authResult api.AuthResult
	authErr    error

	conversations []api.Conversation
	convErr       error

	messages []api.Message

	chatResult api.ChatResult
	chatErr    error

	execResult api.ExecResult
	execErr    error

	lastLanguage string
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (api.User, bool, error) {
	_ = ctx
	return f.authResult.User, f.authResult.NeedsLanguage, f.authErr
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (api.AuthResult, error) {
	_ = ctx
	_ = email
	_ = password
	return f.authResult, f.authErr
}

func (f *fakeBackend) Register(ctx context.Context, username, email, password string) (api.AuthResult, error) {
	_ = ctx
	_ = username
	_ = email
	_ = password
	return f.authResult, f.authErr
}

func (f *fakeBackend) SetLanguage(ctx context.Context, language string) error {
	_ = ctx
	f.lastLanguage = language
	return nil
}

func (f *fakeBackend) Username(ctx context.Context) (string, error) {
	_ = ctx
	return "", nil
}

func (f *fakeBackend) SetUsername(ctx context.Context, username string) error {
	_ = ctx
	_ = username
	return nil
}

func (f *fakeBackend) Messages(ctx context.Context, conversationID int64) ([]api.Message, error) {
	_ = ctx
	_ = conversationID
	return f.messages, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, text string, conversationID int64) (api.ChatResult, error) {
	_ = ctx
	_ = text
	_ = conversationID
	return f.chatResult, f.chatErr
}

func (f *fakeBackend) Execute(ctx context.Context, script, language string) (api.ExecResult, error) {
	_ = ctx
	_ = script
	_ = language
	return f.execResult, f.execErr
}

func (f *fakeBackend) Conversations(ctx context.Context) ([]api.Conversation, error) {
	_ = ctx
	return f.conversations, f.convErr
}

func (f *fakeBackend) CreateConversation(ctx context.Context, title string) (api.Conversation, error) {
	_ = ctx
	conv := api.Conversation{ID: 99, Title: title}
	f.conversations = append(f.conversations, conv)
	return conv, nil
}

func (f *fakeBackend) DeleteConversation(ctx context.Context, id int64) error {
	_ = ctx
	kept := f.conversations[:0]
	for _, c := range f.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.conversations = kept
	return nil
}

func newTestApp(backend *fakeBackend, mode session.Mode) appModel {
	mgr := session.NewManager(backend, creds.NewMemStore(), mode)
	gate := chat.NewGate(backend)
	ctrl := chat.NewController(backend, gate)
	m := New(Options{
		Manager:       mgr,
		Controller:    ctrl,
		Gate:          gate,
		Conversations: backend,
		Version:       "test",
	})
	return m.(appModel)
}

// runCmds executes command closures synchronously, flattening batches. Tick
// re-arm commands are not re-run.
func runCmds(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmds(c)...)
		}
		return out
	}
	if _, isTick := msg.(time.Time); isTick {
		return nil
	}
	return []tea.Msg{msg}
}

// apply feeds one message and then drains the resulting commands back into
// the model, the way the bubbletea runtime would.
func apply(t *testing.T, m appModel, msg tea.Msg) appModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(appModel)
	for _, produced := range runCmds(cmd) {
		if produced == tea.Quit() {
			return m
		}
		m = apply(t, m, produced)
	}
	return m
}

func typeText(t *testing.T, m appModel, text string) appModel {
	t.Helper()
	for _, r := range text {
		if r == ' ' {
			m = apply(t, m, tea.KeyMsg{Type: tea.KeySpace})
			continue
		}
		m = apply(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func key(typ tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: typ} }

func TestApp_LoginLanguageChatExecuteFlow(t *testing.T) {
	backend := &fakeBackend{
		authResult: api.AuthResult{
			Token:         "tok",
			User:          api.User{ID: 1, Username: "ana"},
			NeedsLanguage: true,
		},
		chatResult: api.ChatResult{
			ConversationID: 7,
			Reply:          api.ChatReply{Content: "here you go", NeedsCode: true, Code: "print(42)", Language: "python"},
		},
		execResult: api.ExecResult{Output: "42\n"},
	}
	m := newTestApp(backend, session.ModeToken)

	// No stored token: bootstrap resolves synchronously, the next tick lands
	// on the sign-in screen.
	_ = m.Init()
	m = apply(t, m, time.Now())
	if m.screen != screenAuth {
		t.Fatalf("expected auth screen, got %s", m.screen)
	}

	m = typeText(t, m, "ana@example.com")
	m = apply(t, m, key(tea.KeyTab))
	m = typeText(t, m, "secret")
	m = apply(t, m, key(tea.KeyEnter))

	if m.screen != screenLanguage {
		t.Fatalf("expected language screen after login, got %s", m.screen)
	}

	m = apply(t, m, key(tea.KeyDown))
	m = apply(t, m, key(tea.KeyDown))
	m = apply(t, m, key(tea.KeyEnter))
	if backend.lastLanguage != "en" {
		t.Fatalf("unexpected language sent: %q", backend.lastLanguage)
	}
	if m.screen != screenChat {
		t.Fatalf("expected chat screen, got %s", m.screen)
	}

	// Draft conversation, one turn, code proposal comes back.
	m = typeText(t, m, "n")
	if !m.ctrl.Active() || m.ctrl.ConversationID() != 0 {
		t.Fatalf("draft not started: active=%v id=%d", m.ctrl.Active(), m.ctrl.ConversationID())
	}
	m = typeText(t, m, "compute 42")
	m = apply(t, m, key(tea.KeyEnter))

	if m.overlay != overlayExecConfirm {
		t.Fatalf("expected execution confirmation, got %s", m.overlay)
	}
	if m.ctrl.ConversationID() != 7 {
		t.Fatalf("draft did not adopt the minted id, got %d", m.ctrl.ConversationID())
	}

	m = typeText(t, m, "y")
	if m.overlay != overlayNone {
		t.Fatalf("overlay not dismissed after execution, got %s", m.overlay)
	}

	msgs := m.ctrl.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected user+assistant+system, got %d", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleSystem || !strings.Contains(last.Content, "42") {
		t.Fatalf("execution result missing from transcript: %#v", last)
	}

	if out := m.View(); !strings.Contains(out, "CODECHAT") {
		t.Fatal("view lost the header")
	}
}

func TestApp_CancelledExecutionLeavesTranscriptAlone(t *testing.T) {
	backend := &fakeBackend{
		authResult: api.AuthResult{Token: "tok", User: api.User{ID: 1, Username: "ana", Language: "es"}},
		chatResult: api.ChatResult{
			ConversationID: 7,
			Reply:          api.ChatReply{Content: "sure", NeedsCode: true, Code: "x()", Language: "python"},
		},
	}
	m := newTestApp(backend, session.ModeToken)
	_ = m.Init()
	m = apply(t, m, time.Now())

	m = typeText(t, m, "ana@example.com")
	m = apply(t, m, key(tea.KeyTab))
	m = typeText(t, m, "secret")
	m = apply(t, m, key(tea.KeyEnter))
	if m.screen != screenChat {
		t.Fatalf("expected chat screen, got %s", m.screen)
	}

	m = typeText(t, m, "n")
	m = typeText(t, m, "gimme code")
	m = apply(t, m, key(tea.KeyEnter))
	if m.overlay != overlayExecConfirm {
		t.Fatalf("expected confirmation overlay, got %s", m.overlay)
	}

	m = apply(t, m, key(tea.KeyEsc))
	if m.overlay != overlayNone {
		t.Fatalf("overlay not dismissed, got %s", m.overlay)
	}
	if _, pending := m.gate.Pending(); pending {
		t.Fatal("request still pending after cancel")
	}
	for _, msg := range m.ctrl.Messages() {
		if msg.Role == chat.RoleSystem {
			t.Fatalf("system message appeared for a cancelled run: %#v", msg)
		}
	}
}

func TestApp_AuthFailureDropsToSignIn(t *testing.T) {
	backend := &fakeBackend{
		authResult: api.AuthResult{Token: "tok", User: api.User{ID: 1, Username: "ana", Language: "es"}},
	}
	m := newTestApp(backend, session.ModeToken)
	_ = m.Init()
	m = apply(t, m, time.Now())

	m = typeText(t, m, "ana@example.com")
	m = apply(t, m, key(tea.KeyTab))
	m = typeText(t, m, "secret")
	m = apply(t, m, key(tea.KeyEnter))
	if m.screen != screenChat {
		t.Fatalf("expected chat screen, got %s", m.screen)
	}

	// A later fetch comes back with a rejected token.
	backend.convErr = &api.Error{Kind: api.KindAuth, Status: 401, Message: "expired"}
	m = typeText(t, m, "r")

	if m.screen != screenAuth {
		t.Fatalf("expected to fall back to sign-in, got %s", m.screen)
	}
	if m.formError == "" {
		t.Fatal("expired-session explanation missing")
	}
	if m.ctrl.Active() {
		t.Fatal("conversation left active across the session reset")
	}
	if m.mgr.State() != session.StateUnauthenticated {
		t.Fatalf("session state not reset: %s", m.mgr.State())
	}
}

func TestApp_RegisterValidation(t *testing.T) {
	m := newTestApp(&fakeBackend{}, session.ModeToken)
	_ = m.Init()
	m = apply(t, m, time.Now())

	m = apply(t, m, key(tea.KeyCtrlR))
	if m.form != formRegister {
		t.Fatalf("expected register form, got %d", m.form)
	}

	m = apply(t, m, key(tea.KeyEnter))
	if m.formError == "" {
		t.Fatal("empty register form accepted")
	}
	if m.screen != screenAuth {
		t.Fatalf("screen moved: %s", m.screen)
	}
}

func TestApp_QuitConfirm(t *testing.T) {
	m := newTestApp(&fakeBackend{}, session.ModeToken)
	_ = m.Init()
	m = apply(t, m, time.Now())

	m = apply(t, m, key(tea.KeyEsc))
	if m.overlay != overlayQuitConfirm {
		t.Fatalf("expected quit confirmation, got %s", m.overlay)
	}
	m = typeText(t, m, "n")
	if m.overlay != overlayNone {
		t.Fatalf("quit confirmation not dismissed, got %s", m.overlay)
	}

	m = apply(t, m, key(tea.KeyEsc))
	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(appModel)
	if cmd == nil || cmd() != tea.Quit() {
		t.Fatal("confirming quit did not quit")
	}
}

func TestApp_ViewRendersEveryScreen(t *testing.T) {
	backend := &fakeBackend{
		authResult: api.AuthResult{Token: "tok", User: api.User{ID: 1, Username: "ana"}, NeedsLanguage: true},
	}
	m := newTestApp(backend, session.ModeToken)
	_ = m.Init()

	m = apply(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if out := m.View(); out == "" {
		t.Fatal("loading view empty")
	}

	m = apply(t, m, time.Now())
	if out := m.View(); !strings.Contains(out, "SIGN IN") {
		t.Fatal("auth view missing its title")
	}

	m = apply(t, m, tea.WindowSizeMsg{Width: 10, Height: 3})
	if out := m.View(); !strings.Contains(out, "too small") {
		t.Fatalf("size guard missing: %q", out)
	}
}
