package chat

import (
	"strings"
	"time"

	"codechat/internal/api"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one transcript entry. Optimistic entries get a local id from
// the controller; entries loaded from the backend keep their server id.
type Message struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
	NeedsCode bool
	Code      string
	Language  string
}

// ExecutionRequest is the payload the gate holds between "assistant proposed
// code" and "user decided". At most one exists at a time.
type ExecutionRequest struct {
	Code     string
	Language string
}

// Reply is the tagged form of an assistant turn: plain text, or text plus a
// code proposal. Building it here makes the gate's trigger a nil check
// instead of a scattered presence check on optional fields.
type Reply struct {
	Content  string
	Proposal *ExecutionRequest
}

const defaultPayloadLanguage = "python"

func replyFromAPI(r api.ChatReply) Reply {
	rep := Reply{Content: r.Content}
	if r.NeedsCode && strings.TrimSpace(r.Code) != "" {
		lang := r.Language
		if lang == "" {
			lang = defaultPayloadLanguage
		}
		rep.Proposal = &ExecutionRequest{Code: r.Code, Language: lang}
	}
	return rep
}

// created_at arrives either as RFC3339 or as sqlite's naive timestamp.
var createdAtLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func messageFromAPI(m api.Message) Message {
	return Message{
		ID:        m.ID,
		Role:      Role(m.Role),
		Content:   m.Content,
		CreatedAt: parseCreatedAt(m.CreatedAt),
		NeedsCode: m.NeedsCode,
		Code:      m.Code,
		Language:  m.Language,
	}
}
