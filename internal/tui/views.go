package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"codechat/internal/chat"
	"codechat/internal/session"
)

func (m appModel) View() string {
	w, h := m.effectiveSize()
	if w < 20 || h < 6 {
		return m.viewTooSmall(w, h)
	}

	var base string
	switch m.screen {
	case screenLoading:
		base = m.viewLoading()
	case screenAuth:
		base = m.viewAuth()
	case screenOnboarding:
		base = m.viewOnboarding()
	case screenLanguage:
		base = m.viewLanguage()
	case screenChat:
		base = m.viewChat()
	default:
		base = "unknown screen"
	}

	switch m.overlay {
	case overlayExecConfirm:
		return renderOverlay(m.th, base, m.viewExecConfirm())
	case overlayNotice:
		return renderOverlay(m.th, base, m.viewNotice())
	case overlayQuitConfirm:
		return renderOverlay(m.th, base, m.viewQuitConfirm())
	}
	return base
}

func (m appModel) header() string {
	left := fmt.Sprintf("CODECHAT %s", m.version)
	right := ""
	if u := m.mgr.User(); u != nil {
		right = fmt.Sprintf("[ %s ]", u.Username)
	}
	return m.th.Header.Render(strings.TrimSpace(left+" "+right)) + "\n" +
		m.th.Muted.Render("Screen: "+m.screen.String())
}

func (m appModel) viewLoading() string {
	lines := []string{
		m.header(),
		"",
		"Loading " + spinner(m.now),
	}
	return m.framed(strings.Join(lines, "\n"))
}

func (m appModel) viewAuth() string {
	title := "SIGN IN"
	labels := []string{"Email", "Password"}
	switchHint := "[Ctrl+R] Create an account"
	if m.form == formRegister {
		title = "CREATE ACCOUNT"
		labels = []string{"Username", "Email", "Password"}
		switchHint = "[Ctrl+R] Back to sign in"
	}

	lines := []string{
		m.header(),
		"",
		m.th.Accent.Render(title),
		"",
	}
	for i, label := range labels {
		idx := i
		if m.form == formLogin {
			idx = i + 1
		}
		value := m.fields[idx]
		if label == "Password" {
			value = strings.Repeat("•", len(value))
		}
		prefix := "  "
		row := fmt.Sprintf("%-10s %s", label+":", m.th.Input.Render(value))
		if i == m.fieldFocus {
			prefix = m.th.Accent.Render("> ")
		}
		lines = append(lines, prefix+row)
	}
	if m.formError != "" {
		lines = append(lines, "", m.th.Danger.Render(m.formError))
	}
	if m.busy {
		lines = append(lines, "", m.th.Muted.Render("Working "+spinner(m.now)))
	}
	lines = append(lines, "",
		m.th.Muted.Render("[Tab] Next field    [Enter] Submit    "+switchHint))
	return m.framed(strings.Join(lines, "\n"))
}

func (m appModel) viewOnboarding() string {
	lines := []string{
		m.header(),
		"",
		m.th.Accent.Render("WELCOME"),
		m.th.Muted.Render("To get started, please enter your name:"),
		"",
		"> " + m.th.Input.Render(m.nameInput),
	}
	if m.formError != "" {
		lines = append(lines, "", m.th.Danger.Render(m.formError))
	}
	if m.busy {
		lines = append(lines, "", m.th.Muted.Render("Saving "+spinner(m.now)))
	}
	lines = append(lines, "", m.th.Muted.Render("[Enter] Continue"))
	return m.framed(strings.Join(lines, "\n"))
}

func (m appModel) viewLanguage() string {
	username := ""
	if u := m.mgr.User(); u != nil {
		username = u.Username
	}
	lines := []string{
		m.header(),
		"",
		m.th.Accent.Render(fmt.Sprintf("Welcome%s!", commaName(username))),
		m.th.Muted.Render("Pick the language the assistant should answer in"),
		"",
	}
	for i, opt := range languageOptions() {
		prefix := "  "
		text := opt.label
		if i == m.langIndex {
			prefix = m.th.Accent.Render("> ")
			text = m.th.Accent.Render(text)
		}
		lines = append(lines, prefix+text)
	}
	if m.formError != "" {
		lines = append(lines, "", m.th.Danger.Render(m.formError))
	}
	if m.busy {
		lines = append(lines, "", m.th.Muted.Render("Saving "+spinner(m.now)))
	}
	lines = append(lines, "", m.th.Muted.Render("[Up/Down] Select    [Enter] Continue"))
	return m.framed(strings.Join(lines, "\n"))
}

func commaName(name string) string {
	if name == "" {
		return ""
	}
	return ", " + name
}

func (m appModel) viewChat() string {
	w, h := m.effectiveSize()
	if w < 48 || h < 10 {
		return m.viewTooSmall(w, h)
	}

	sidebarW := clamp(int(float64(w)*0.30), 20, 36)
	chatW := w - sidebarW - 1

	sidebar := m.viewSidebar(sidebarW)
	main := m.viewTranscript(chatW)

	row := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, m.th.Muted.Render("│"), main)
	return lipgloss.JoinVertical(lipgloss.Top, m.header(), row)
}

func (m appModel) viewSidebar(width int) string {
	lines := []string{m.th.Accent.Render("CONVERSATIONS")}
	if len(m.conversations) == 0 {
		lines = append(lines,
			m.th.Muted.Render("No conversations"),
			m.th.Muted.Render("Press n to start one"))
	}
	for i, conv := range m.conversations {
		title := conv.Title
		if title == "" {
			title = fmt.Sprintf("Conversation %d", conv.ID)
		}
		if len(title) > width-6 && width > 9 {
			title = title[:width-9] + "..."
		}
		prefix := "  "
		if m.ctrl.Active() && m.ctrl.ConversationID() == conv.ID {
			prefix = "• "
		}
		if i == m.convIndex && m.focus == focusSidebar {
			prefix = m.th.Accent.Render("> ")
			title = m.th.Accent.Render(title)
		}
		lines = append(lines, prefix+title)
	}
	lines = append(lines, "",
		m.th.Muted.Render("[n] New  [c] Create"),
		m.th.Muted.Render("[d] Delete  [r] Reload"))
	if m.mgr.Mode() == session.ModeToken {
		lines = append(lines, m.th.Muted.Render("[Ctrl+L] Log out"))
	}
	return m.th.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m appModel) viewTranscript(width int) string {
	_, h := m.effectiveSize()

	if !m.ctrl.Active() {
		lines := []string{
			m.th.Accent.Render("Select a conversation"),
			m.th.Muted.Render("Or press n in the sidebar to start a new one"),
		}
		return m.th.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
	}

	var lines []string
	for _, msg := range m.ctrl.Messages() {
		lines = append(lines, m.renderMessage(msg)...)
	}
	if m.ctrl.Loading() {
		lines = append(lines, m.th.Muted.Render("Assistant is thinking "+spinner(m.now)))
	}

	visible := max(4, h-10)
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	history := strings.Join(lines, "\n")

	inputLine := "> " + m.th.Input.Render(m.input)
	if m.focus != focusInput {
		inputLine = m.th.Muted.Render("> ") + m.input
	}
	footer := m.th.Muted.Render("[Tab] Sidebar/input    [Enter] Send    [Esc] Quit")
	return m.th.Panel.Width(width - 2).Render(history + "\n\n" + inputLine + "\n" + footer)
}

// renderMessage renders one transcript entry through the content parser so
// fenced code shows as an indented block with its language badge.
func (m appModel) renderMessage(msg chat.Message) []string {
	var label string
	switch msg.Role {
	case chat.RoleUser:
		label = m.th.Accent.Render("You: ")
	case chat.RoleAssistant:
		label = m.th.Success.Render("AI: ")
	default:
		label = m.th.Muted.Render("[SYSTEM] ")
	}

	var out []string
	first := true
	emit := func(line string) {
		if first {
			out = append(out, label+line)
			first = false
			return
		}
		out = append(out, line)
	}

	for _, seg := range chat.ParseContent(msg.Content) {
		switch seg.Kind {
		case chat.SegmentCode:
			emit(m.th.Muted.Render(fmt.Sprintf("┌─[%s]", seg.Language)))
			for _, line := range strings.Split(strings.TrimRight(seg.Content, "\n"), "\n") {
				emit(m.th.Muted.Render("│ ") + line)
			}
			emit(m.th.Muted.Render("└─"))
		default:
			for _, line := range seg.Lines() {
				emit(line)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, label)
	}
	return out
}

func (m appModel) viewExecConfirm() string {
	req, ok := m.gate.Pending()
	executing := m.gate.State() == chat.GateExecuting
	lines := []string{
		m.th.Alert.Render("RUN THIS CODE?"),
	}
	if executing {
		lines = append(lines, m.th.Muted.Render("Executing "+spinner(m.now)))
	} else if ok {
		lines = append(lines, m.th.Muted.Render(fmt.Sprintf("[%s]", req.Language)), "")
		code := strings.Split(strings.TrimRight(req.Code, "\n"), "\n")
		if len(code) > 12 {
			code = append(code[:12], m.th.Muted.Render("..."))
		}
		lines = append(lines, code...)
		lines = append(lines, "", m.th.Muted.Render("Enter/y: run    Esc/n: cancel"))
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func (m appModel) viewNotice() string {
	lines := []string{
		m.th.Danger.Render("ERROR"),
		m.notice,
		"",
		m.th.Muted.Render("Enter/Esc: dismiss"),
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func (m appModel) viewQuitConfirm() string {
	lines := []string{
		m.th.Danger.Render("QUIT CODECHAT?"),
		m.th.Muted.Render("Enter/y: quit    Esc/n: cancel"),
	}
	return m.th.OverlayBox.Render(strings.Join(lines, "\n"))
}

func renderOverlay(th theme, base string, overlay string) string {
	dim := th.Overlay.Render(base)
	return dim + "\n\n" + overlay
}

func spinner(now time.Time) string {
	frames := []string{"|", "/", "-", "\\"}
	i := int(now.UnixMilli()/120) % len(frames)
	return frames[i]
}

func (m appModel) framed(body string) string {
	frame := m.th.Frame
	if w, _ := m.effectiveSize(); w >= 4 {
		frame = frame.Width(w - 2)
	}
	return frame.Render(body)
}

func (m appModel) effectiveSize() (int, int) {
	w := m.width
	h := m.height
	// Smoke tests and headless runs may never deliver a WindowSizeMsg.
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	return w, h
}

func (m appModel) viewTooSmall(w, h int) string {
	lines := []string{
		m.th.Header.Render("CODECHAT"),
		m.th.Alert.Render("Terminal too small"),
		m.th.Muted.Render(fmt.Sprintf("Minimum: 20x6 (chat: 48x10). Current: %dx%d", w, h)),
	}
	return strings.Join(lines, "\n")
}
