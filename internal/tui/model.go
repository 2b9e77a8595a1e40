package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"codechat/internal/api"
	"codechat/internal/chat"
	"codechat/internal/session"
	"codechat/pkg/logger"
)

type screen int

const (
	screenLoading screen = iota
	screenAuth
	screenOnboarding
	screenLanguage
	screenChat
)

func (s screen) String() string {
	switch s {
	case screenLoading:
		return "loading"
	case screenAuth:
		return "auth"
	case screenOnboarding:
		return "onboarding"
	case screenLanguage:
		return "language"
	case screenChat:
		return "chat"
	default:
		return "unknown"
	}
}

type overlay int

const (
	overlayNone overlay = iota
	overlayExecConfirm
	overlayNotice
	overlayQuitConfirm
)

func (o overlay) String() string {
	switch o {
	case overlayNone:
		return "none"
	case overlayExecConfirm:
		return "exec_confirm"
	case overlayNotice:
		return "notice"
	case overlayQuitConfirm:
		return "quit_confirm"
	default:
		return "unknown"
	}
}

type authForm int

const (
	formLogin authForm = iota
	formRegister
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// ConversationAPI is what the sidebar needs from the gateway.
type ConversationAPI interface {
	Conversations(ctx context.Context) ([]api.Conversation, error)
	CreateConversation(ctx context.Context, title string) (api.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error
}

type Options struct {
	Manager       *session.Manager
	Controller    *chat.Controller
	Gate          *chat.Gate
	Conversations ConversationAPI
	Version       string
}

type languageOption struct {
	code  string
	label string
}

func languageOptions() []languageOption {
	return []languageOption{
		{code: "es", label: "Español (Latinoamericano)"},
		{code: "en", label: "English"},
	}
}

type appModel struct {
	th      theme
	version string

	width  int
	height int

	mgr     *session.Manager
	ctrl    *chat.Controller
	gate    *chat.Gate
	convAPI ConversationAPI

	screen  screen
	overlay overlay

	// auth screen
	form       authForm
	fields     []string
	fieldFocus int
	formError  string
	busy       bool

	// language screen
	langIndex int

	// onboarding screen
	nameInput string

	// chat screen
	conversations []api.Conversation
	convIndex     int
	focus         focusArea
	input         string

	notice string

	now time.Time
}

func New(o Options) tea.Model {
	return appModel{
		th:        defaultTheme(),
		version:   o.Version,
		mgr:       o.Manager,
		ctrl:      o.Controller,
		gate:      o.Gate,
		convAPI:   o.Conversations,
		screen:    screenLoading,
		fields:    make([]string, 3),
		langIndex: -1,
	}
}

// Result messages carried back from command closures.
type bootstrapMsg struct{ r session.BootstrapResult }
type authMsg struct{ r session.AuthOutcome }
type languageMsg struct{ r session.LanguageOutcome }
type usernameMsg struct{ r session.UsernameOutcome }
type conversationsMsg struct {
	list []api.Conversation
	err  error
}
type convCreatedMsg struct {
	conv api.Conversation
	err  error
}
type convDeletedMsg struct {
	id  int64
	err error
}
type loadMsg struct{ r chat.LoadResult }
type sendMsg struct{ r chat.SendResult }
type execMsg struct{ r chat.ExecOutcome }

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return t })
}

func (m appModel) Init() tea.Cmd {
	fn, async := m.mgr.Bootstrap()
	if !async {
		// No persisted token; the manager has already resolved the state.
		return tickCmd()
	}
	return tea.Batch(tickCmd(), func() tea.Msg {
		return bootstrapMsg{fn(context.Background())}
	})
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = t.Width
		m.height = t.Height
		return m, nil

	case time.Time:
		m.now = t
		if m.screen == screenLoading && m.mgr.State() != session.StateLoading {
			var cmd tea.Cmd
			m, cmd = m.syncScreen()
			return m, tea.Batch(tickCmd(), cmd)
		}
		return m, tickCmd()

	case bootstrapMsg:
		m.mgr.FinishBootstrap(t.r)
		return m.syncScreen()

	case authMsg:
		m.busy = false
		_, err := m.mgr.FinishAuth(t.r)
		if err != nil {
			m.formError = api.FailureText(err)
			return m, nil
		}
		m.formError = ""
		m.fields = make([]string, 3)
		m.fieldFocus = 0
		return m.syncScreen()

	case languageMsg:
		m.busy = false
		_, err := m.mgr.FinishLanguage(t.r)
		if err != nil {
			if next, handled := m.authGuard(err); handled {
				return next, nil
			}
			m.formError = api.FailureText(err)
			return m, nil
		}
		m.formError = ""
		return m.syncScreen()

	case usernameMsg:
		m.busy = false
		_, err := m.mgr.FinishUsername(t.r)
		if err != nil {
			m.formError = api.FailureText(err)
			return m, nil
		}
		m.formError = ""
		return m.syncScreen()

	case conversationsMsg:
		if t.err != nil {
			if next, handled := m.authGuard(t.err); handled {
				return next, nil
			}
			logger.Errorf("tui: loading conversations failed: %v", t.err)
			return m, nil
		}
		m.conversations = t.list
		m.convIndex = clamp(m.convIndex, 0, max(0, len(m.conversations)-1))
		return m, nil

	case convCreatedMsg:
		if t.err != nil {
			if next, handled := m.authGuard(t.err); handled {
				return next, nil
			}
			logger.Errorf("tui: creating conversation failed: %v", t.err)
			return m, nil
		}
		fn := m.ctrl.Select(t.conv.ID)
		return m, tea.Batch(m.fetchConversationsCmd(), func() tea.Msg {
			return loadMsg{fn(context.Background())}
		})

	case convDeletedMsg:
		if t.err != nil {
			if next, handled := m.authGuard(t.err); handled {
				return next, nil
			}
			logger.Errorf("tui: deleting conversation failed: %v", t.err)
			return m, nil
		}
		if m.ctrl.ConversationID() == t.id && m.ctrl.Active() {
			m.ctrl.Deselect()
		}
		return m, m.fetchConversationsCmd()

	case loadMsg:
		if t.r.Err != nil {
			if next, handled := m.authGuard(t.r.Err); handled {
				return next, nil
			}
		}
		m.ctrl.FinishLoad(t.r)
		return m, nil

	case sendMsg:
		created := m.ctrl.FinishSend(t.r, time.Now())
		if t.r.Err != nil {
			if next, handled := m.authGuard(t.r.Err); handled {
				return next, nil
			}
		}
		if _, pending := m.gate.Pending(); pending {
			m.overlay = overlayExecConfirm
		}
		if created != 0 {
			return m, m.fetchConversationsCmd()
		}
		return m, nil

	case execMsg:
		content, notice := m.gate.Finish(t.r)
		if content != "" {
			m.ctrl.AppendSystem(content, time.Now())
		}
		if notice != "" {
			m.notice = notice
			m.overlay = overlayNotice
		} else if m.overlay == overlayExecConfirm {
			m.overlay = overlayNone
		}
		return m, nil

	case tea.KeyMsg:
		if t.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		switch m.overlay {
		case overlayExecConfirm:
			return m.updateExecConfirm(t)
		case overlayNotice:
			return m.updateNotice(t)
		case overlayQuitConfirm:
			return m.updateQuitConfirm(t)
		}

		if t.String() == "esc" {
			if m.screen != screenLoading {
				m.overlay = overlayQuitConfirm
			}
			return m, nil
		}

		switch m.screen {
		case screenAuth:
			return m.updateAuth(t)
		case screenOnboarding:
			return m.updateOnboarding(t)
		case screenLanguage:
			return m.updateLanguage(t)
		case screenChat:
			return m.updateChat(t)
		default:
			return m, nil
		}

	default:
		return m, nil
	}
}

// syncScreen maps the session state onto the active screen. Entering the
// chat screen kicks off the conversation list fetch.
func (m appModel) syncScreen() (appModel, tea.Cmd) {
	prev := m.screen
	switch m.mgr.State() {
	case session.StateLoading:
		m.screen = screenLoading
	case session.StateUnauthenticated:
		m.screen = screenAuth
	case session.StateOnboarding:
		m.screen = screenOnboarding
	case session.StateLanguageSelect:
		m.screen = screenLanguage
		m.langIndex = -1
	case session.StateReady:
		m.screen = screenChat
	}
	if m.screen == screenChat && prev != screenChat {
		m.ctrl.Deselect()
		m.focus = focusSidebar
		return m, m.fetchConversationsCmd()
	}
	return m, nil
}

// authGuard handles the one failure that overrides everything else: a
// rejected bearer token. The gateway has purged the cache already; this
// resets the UI to the sign-in screen.
func (m appModel) authGuard(err error) (appModel, bool) {
	if err == nil || !api.IsAuth(err) || m.mgr.Mode() != session.ModeToken {
		return m, false
	}
	m.mgr.ForceUnauthenticated()
	m.ctrl.Deselect()
	m.conversations = nil
	m.overlay = overlayNone
	m.busy = false
	m.formError = "Your session has expired. Please sign in again."
	m.fields = make([]string, 3)
	m.fieldFocus = 0
	m.form = formLogin
	m.screen = screenAuth
	return m, true
}

func (m appModel) fetchConversationsCmd() tea.Cmd {
	capi := m.convAPI
	return func() tea.Msg {
		list, err := capi.Conversations(context.Background())
		return conversationsMsg{list: list, err: err}
	}
}

func (m appModel) fieldCount() int {
	if m.form == formRegister {
		return 3
	}
	return 2
}

func (m appModel) updateAuth(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch k.Type {
	case tea.KeyTab, tea.KeyDown:
		m.fieldFocus = (m.fieldFocus + 1) % m.fieldCount()
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.fieldFocus = (m.fieldFocus + m.fieldCount() - 1) % m.fieldCount()
		return m, nil
	case tea.KeyCtrlR:
		if m.form == formLogin {
			m.form = formRegister
		} else {
			m.form = formLogin
		}
		m.fields = make([]string, 3)
		m.fieldFocus = 0
		m.formError = ""
		return m, nil
	case tea.KeyBackspace:
		f := m.authField()
		if len(m.fields[f]) > 0 {
			m.fields[f] = m.fields[f][:len(m.fields[f])-1]
		}
		return m, nil
	case tea.KeySpace:
		m.fields[m.authField()] += " "
		return m, nil
	case tea.KeyRunes:
		m.fields[m.authField()] += string(k.Runes)
		return m, nil
	case tea.KeyEnter:
		return m.submitAuth()
	}
	return m, nil
}

// authField maps the visible focus index onto the fields slice, which is
// always laid out as [username, email, password].
func (m appModel) authField() int {
	if m.form == formLogin {
		return m.fieldFocus + 1
	}
	return m.fieldFocus
}

func (m appModel) submitAuth() (tea.Model, tea.Cmd) {
	username, email, password := m.fields[0], m.fields[1], m.fields[2]
	if m.form == formRegister && username == "" {
		m.formError = "Username is required"
		return m, nil
	}
	if email == "" || password == "" {
		m.formError = "Email and password are required"
		return m, nil
	}

	m.busy = true
	m.formError = ""
	var fn func(context.Context) session.AuthOutcome
	if m.form == formRegister {
		fn = m.mgr.Register(username, email, password)
	} else {
		fn = m.mgr.Login(email, password)
	}
	return m, func() tea.Msg {
		return authMsg{fn(context.Background())}
	}
}

func (m appModel) updateOnboarding(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch k.Type {
	case tea.KeyBackspace:
		if len(m.nameInput) > 0 {
			m.nameInput = m.nameInput[:len(m.nameInput)-1]
		}
	case tea.KeySpace:
		m.nameInput += " "
	case tea.KeyRunes:
		m.nameInput += string(k.Runes)
	case tea.KeyEnter:
		fn, err := m.mgr.SubmitUsername(m.nameInput)
		if err != nil {
			m.formError = "Please enter your name"
			return m, nil
		}
		m.busy = true
		m.formError = ""
		return m, func() tea.Msg {
			return usernameMsg{fn(context.Background())}
		}
	}
	return m, nil
}

func (m appModel) updateLanguage(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	opts := languageOptions()
	switch k.Type {
	case tea.KeyUp:
		if m.langIndex <= 0 {
			m.langIndex = 0
		} else {
			m.langIndex--
		}
	case tea.KeyDown:
		if m.langIndex < len(opts)-1 {
			m.langIndex++
		}
	case tea.KeyEnter:
		if m.langIndex < 0 {
			m.formError = "Please select a language"
			return m, nil
		}
		fn, err := m.mgr.SelectLanguage(opts[m.langIndex].code)
		if err != nil {
			m.formError = "Please select a language"
			return m, nil
		}
		m.busy = true
		m.formError = ""
		return m, func() tea.Msg {
			return languageMsg{fn(context.Background())}
		}
	}
	return m, nil
}

func (m appModel) updateChat(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.Type == tea.KeyCtrlL && m.mgr.Mode() == session.ModeToken {
		m.mgr.Logout()
		m.ctrl.Deselect()
		m.conversations = nil
		m.input = ""
		m.formError = ""
		var cmd tea.Cmd
		m, cmd = m.syncScreen()
		return m, cmd
	}
	if k.Type == tea.KeyTab {
		if m.focus == focusInput {
			m.focus = focusSidebar
		} else {
			m.focus = focusInput
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.updateSidebar(k)
	}
	return m.updateInput(k)
}

func (m appModel) updateSidebar(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyUp:
		if m.convIndex > 0 {
			m.convIndex--
		}
	case tea.KeyDown:
		if m.convIndex < len(m.conversations)-1 {
			m.convIndex++
		}
	case tea.KeyEnter:
		if len(m.conversations) == 0 {
			return m, nil
		}
		conv := m.conversations[m.convIndex]
		fn := m.ctrl.Select(conv.ID)
		return m, func() tea.Msg {
			return loadMsg{fn(context.Background())}
		}
	case tea.KeyRunes:
		switch string(k.Runes) {
		case "n":
			// Draft: nothing exists server-side until the first send.
			m.ctrl.StartDraft()
			m.focus = focusInput
			return m, nil
		case "c":
			capi := m.convAPI
			return m, func() tea.Msg {
				conv, err := capi.CreateConversation(context.Background(), "")
				return convCreatedMsg{conv: conv, err: err}
			}
		case "d":
			if len(m.conversations) == 0 {
				return m, nil
			}
			id := m.conversations[m.convIndex].ID
			capi := m.convAPI
			return m, func() tea.Msg {
				err := capi.DeleteConversation(context.Background(), id)
				return convDeletedMsg{id: id, err: err}
			}
		case "r":
			return m, m.fetchConversationsCmd()
		}
	}
	return m, nil
}

func (m appModel) updateInput(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(k.Runes)
	case tea.KeyEnter:
		fn, ok := m.ctrl.Send(m.input, time.Now())
		if !ok {
			// Empty input, no conversation surface, or a send in flight.
			return m, nil
		}
		m.input = ""
		return m, func() tea.Msg {
			return sendMsg{fn(context.Background())}
		}
	}
	return m, nil
}

func (m appModel) updateExecConfirm(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.gate.State() == chat.GateExecuting {
		// No mid-flight cancellation; wait for the outcome.
		return m, nil
	}
	switch k.String() {
	case "enter", "y":
		fn, ok := m.gate.Confirm()
		if !ok {
			m.overlay = overlayNone
			return m, nil
		}
		return m, func() tea.Msg {
			return execMsg{fn(context.Background())}
		}
	case "esc", "n":
		m.gate.Cancel()
		m.overlay = overlayNone
	}
	return m, nil
}

func (m appModel) updateNotice(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "enter", "esc":
		m.notice = ""
		m.overlay = overlayNone
	}
	return m, nil
}

func (m appModel) updateQuitConfirm(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "enter", "y":
		return m, tea.Quit
	case "esc", "n":
		m.overlay = overlayNone
	}
	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
