package api

// User is the identity record the backend returns on register, login and
// /auth/me. Language is empty until the user has picked one.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Language string `json:"language,omitempty"`
}

// NeedsLanguage reports whether the user still has to pick a response
// language.
func (u User) NeedsLanguage() bool {
	return u.Language == ""
}

// AuthResult is the outcome of a successful register or login call.
type AuthResult struct {
	Token         string `json:"token"`
	User          User   `json:"user"`
	NeedsLanguage bool   `json:"needs_language"`
}

type Conversation struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Message is a stored message as the backend serves it. CreatedAt stays a
// string on the wire; the chat layer parses it for display.
type Message struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	NeedsCode bool   `json:"needs_code,omitempty"`
	Code      string `json:"code,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ChatReply is the assistant turn inside a /chat response.
type ChatReply struct {
	Content   string `json:"content"`
	NeedsCode bool   `json:"needs_code"`
	Code      string `json:"code,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ChatResult is the full /chat response. ConversationID is always set by the
// backend; when the request carried no conversation id it names the
// conversation that was just created.
type ChatResult struct {
	ConversationID int64     `json:"conversation_id"`
	Reply          ChatReply `json:"response"`
}

// ExecResult is the outcome of a remote script execution. Error is the
// script's own stderr/failure, distinct from the call itself failing.
type ExecResult struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}
