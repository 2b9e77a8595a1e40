// Package session decides which top-level screen the user is on: it resolves
// the persisted token at startup, runs login/register/language selection,
// and tears the session down on logout or a rejected token.
package session

import (
	"context"
	"errors"
	"strings"

	"codechat/internal/api"
	"codechat/internal/creds"
	"codechat/pkg/logger"
)

type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateOnboarding
	StateLanguageSelect
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateOnboarding:
		return "onboarding"
	case StateLanguageSelect:
		return "language_select"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Mode selects the deployment variant. The two never run at once.
type Mode int

const (
	// ModeToken: multi-user backend with bearer-token auth and a mandatory
	// language selection step.
	ModeToken Mode = iota
	// ModeLocal: single-user backend that only keeps a username; bootstrap
	// goes straight to Onboarding or Ready.
	ModeLocal
)

// Gateway is the slice of the API client the state machine drives.
type Gateway interface {
	CurrentUser(ctx context.Context) (api.User, bool, error)
	Login(ctx context.Context, email, password string) (api.AuthResult, error)
	Register(ctx context.Context, username, email, password string) (api.AuthResult, error)
	SetLanguage(ctx context.Context, language string) error
	Username(ctx context.Context) (string, error)
	SetUsername(ctx context.Context, username string) error
}

// Manager holds the session state. Like the chat controller it splits every
// transition with a network call in two: the method called on the event loop
// returns a blocking closure, and the matching Finish* applies the result.
//
// Invariants: LanguageSelect is only reachable with an authenticated user;
// Ready (token mode) only with a user whose language is resolved.
type Manager struct {
	gw    Gateway
	creds creds.Store
	mode  Mode

	state State
	user  *api.User
}

func NewManager(gw Gateway, store creds.Store, mode Mode) *Manager {
	return &Manager{gw: gw, creds: store, mode: mode, state: StateLoading}
}

func (m *Manager) State() State    { return m.state }
func (m *Manager) Mode() Mode      { return m.mode }
func (m *Manager) User() *api.User { return m.user }

type BootstrapResult struct {
	User          api.User
	NeedsLanguage bool
	Username      string
	Err           error
}

// Bootstrap resolves the initial state. Without a persisted token (token
// mode) there is nothing to validate and the transition happens
// synchronously: the second return is false and no closure is issued.
func (m *Manager) Bootstrap() (func(context.Context) BootstrapResult, bool) {
	if m.mode == ModeLocal {
		gw := m.gw
		return func(ctx context.Context) BootstrapResult {
			name, err := gw.Username(ctx)
			return BootstrapResult{Username: name, Err: err}
		}, true
	}

	if _, ok := m.creds.Load(); !ok {
		m.state = StateUnauthenticated
		return nil, false
	}
	gw := m.gw
	return func(ctx context.Context) BootstrapResult {
		user, needsLang, err := gw.CurrentUser(ctx)
		return BootstrapResult{User: user, NeedsLanguage: needsLang, Err: err}
	}, true
}

// FinishBootstrap applies the validation result. Any failure in token mode,
// network ones included, purges the persisted credentials: the token is only
// trusted until the backend says otherwise.
func (m *Manager) FinishBootstrap(r BootstrapResult) State {
	if m.mode == ModeLocal {
		if r.Err != nil || strings.TrimSpace(r.Username) == "" {
			if r.Err != nil {
				logger.Warnf("session: username check failed: %v", r.Err)
			}
			m.state = StateOnboarding
			return m.state
		}
		m.user = &api.User{Username: r.Username}
		m.state = StateReady
		return m.state
	}

	if r.Err != nil {
		logger.Infof("session: stored token rejected, purging: %v", r.Err)
		_ = m.creds.Clear()
		m.user = nil
		m.state = StateUnauthenticated
		return m.state
	}
	user := r.User
	m.user = &user
	if r.NeedsLanguage || user.NeedsLanguage() {
		m.state = StateLanguageSelect
	} else {
		m.state = StateReady
	}
	return m.state
}

type AuthOutcome struct {
	Res api.AuthResult
	Err error
}

func (m *Manager) Login(email, password string) func(context.Context) AuthOutcome {
	gw := m.gw
	return func(ctx context.Context) AuthOutcome {
		res, err := gw.Login(ctx, email, password)
		return AuthOutcome{Res: res, Err: err}
	}
}

func (m *Manager) Register(username, email, password string) func(context.Context) AuthOutcome {
	gw := m.gw
	return func(ctx context.Context) AuthOutcome {
		res, err := gw.Register(ctx, username, email, password)
		return AuthOutcome{Res: res, Err: err}
	}
}

// FinishAuth applies a login/register outcome. On failure the state does not
// move; the error goes back to the form layer, which decides how to show it.
func (m *Manager) FinishAuth(r AuthOutcome) (State, error) {
	if r.Err != nil {
		return m.state, r.Err
	}
	user := r.Res.User
	m.user = &user
	if err := m.creds.Save(creds.Credentials{Token: r.Res.Token, User: &user}); err != nil {
		logger.Warnf("session: persisting credentials failed: %v", err)
	}
	if r.Res.NeedsLanguage || user.NeedsLanguage() {
		m.state = StateLanguageSelect
	} else {
		m.state = StateReady
	}
	return m.state, nil
}

type LanguageOutcome struct {
	Language string
	Err      error
}

// SelectLanguage requires a non-empty choice; there is no skip path out of
// language selection.
func (m *Manager) SelectLanguage(language string) (func(context.Context) LanguageOutcome, error) {
	lang := strings.TrimSpace(language)
	if lang == "" {
		return nil, errors.New("session: a language must be selected")
	}
	gw := m.gw
	return func(ctx context.Context) LanguageOutcome {
		err := gw.SetLanguage(ctx, lang)
		return LanguageOutcome{Language: lang, Err: err}
	}, nil
}

func (m *Manager) FinishLanguage(r LanguageOutcome) (State, error) {
	if r.Err != nil {
		return m.state, r.Err
	}
	if m.user != nil {
		m.user.Language = r.Language
	}
	if err := m.creds.SetLanguage(r.Language); err != nil {
		logger.Warnf("session: caching language failed: %v", err)
	}
	m.state = StateReady
	return m.state, nil
}

type UsernameOutcome struct {
	Username string
	Err      error
}

// SubmitUsername is the local-mode onboarding action.
func (m *Manager) SubmitUsername(username string) (func(context.Context) UsernameOutcome, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, errors.New("session: a username is required")
	}
	gw := m.gw
	return func(ctx context.Context) UsernameOutcome {
		err := gw.SetUsername(ctx, name)
		return UsernameOutcome{Username: name, Err: err}
	}, nil
}

func (m *Manager) FinishUsername(r UsernameOutcome) (State, error) {
	if r.Err != nil {
		return m.state, r.Err
	}
	m.user = &api.User{Username: r.Username}
	m.state = StateReady
	return m.state, nil
}

// Logout purges the persisted credentials and returns to the
// unauthenticated screen.
func (m *Manager) Logout() State {
	_ = m.creds.Clear()
	m.user = nil
	m.state = StateUnauthenticated
	return m.state
}

// ForceUnauthenticated is the mid-flow escape hatch: any operation that
// comes back with an auth failure lands here, whatever screen was active.
// The gateway has already purged the token; this clears the rest.
func (m *Manager) ForceUnauthenticated() State {
	if m.mode == ModeLocal {
		return m.state
	}
	return m.Logout()
}
