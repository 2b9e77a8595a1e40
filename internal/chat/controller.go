package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"codechat/internal/api"
	"codechat/pkg/logger"
)

// Gateway is the slice of the API client the controller talks to.
type Gateway interface {
	Messages(ctx context.Context, conversationID int64) ([]api.Message, error)
	SendMessage(ctx context.Context, text string, conversationID int64) (api.ChatResult, error)
}

// Controller owns the message sequence of at most one conversation and
// orchestrates the optimistic send cycle. Mutating methods run on the event
// loop; the closures they return do the blocking network work and their
// results come back through the Finish* methods, again on the loop.
//
// Three shapes of "which conversation":
//   - inactive: nothing selected; sends are rejected
//   - draft: active with id 0; the first send creates the conversation
//     server-side and the adopted id is reported upward exactly once
//   - active: a fixed backend id
type Controller struct {
	gw   Gateway
	gate *Gate

	active         bool
	conversationID int64
	messages       []Message
	loading        bool

	nextLocalID int64
	loadSeq     int64
	sendCID     string
}

func NewController(gw Gateway, gate *Gate) *Controller {
	return &Controller{gw: gw, gate: gate}
}

func (c *Controller) Active() bool          { return c.active }
func (c *Controller) ConversationID() int64 { return c.conversationID }
func (c *Controller) Loading() bool         { return c.loading }
func (c *Controller) Messages() []Message   { return c.messages }

// Deselect returns to the no-conversation empty state.
func (c *Controller) Deselect() {
	c.reset(false, 0)
}

// StartDraft begins a fresh conversation that does not exist server-side
// yet. Sends are allowed; the backend will mint the id on the first one.
func (c *Controller) StartDraft() {
	c.reset(true, 0)
}

func (c *Controller) reset(active bool, id int64) {
	c.active = active
	c.conversationID = id
	c.messages = nil
	c.loading = false
	c.sendCID = ""
	c.loadSeq++
	c.gate.Reset()
}

type LoadResult struct {
	Seq      int64
	Messages []api.Message
	Err      error
}

// Select switches to an existing conversation. State from the previous
// conversation is dropped wholesale, pending execution request included; the
// returned closure fetches the full message list.
func (c *Controller) Select(id int64) func(context.Context) LoadResult {
	c.reset(true, id)
	seq := c.loadSeq
	gw := c.gw
	return func(ctx context.Context) LoadResult {
		msgs, err := gw.Messages(ctx, id)
		return LoadResult{Seq: seq, Messages: msgs, Err: err}
	}
}

// FinishLoad installs a fetched message list. A result from a superseded
// selection is ignored.
func (c *Controller) FinishLoad(r LoadResult) {
	if r.Seq != c.loadSeq {
		return
	}
	if r.Err != nil {
		logger.Errorf("chat: loading messages failed: %v", r.Err)
		return
	}
	msgs := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, messageFromAPI(m))
	}
	c.messages = msgs
}

type SendResult struct {
	CID    string
	Result api.ChatResult
	Err    error
}

// Send appends the optimistic user echo and raises the loading flag before
// returning the network closure. Whitespace-only input is a no-op, not an
// error; sends are rejected while another is in flight or when no
// conversation surface is active.
func (c *Controller) Send(text string, now time.Time) (func(context.Context) SendResult, bool) {
	txt := strings.TrimSpace(text)
	if txt == "" || !c.active || c.loading {
		return nil, false
	}

	c.nextLocalID++
	c.messages = append(c.messages, Message{
		ID:        c.nextLocalID,
		Role:      RoleUser,
		Content:   txt,
		CreatedAt: now,
	})
	c.loading = true

	cid := uuid.NewString()
	c.sendCID = cid
	convID := c.conversationID
	gw := c.gw
	return func(ctx context.Context) SendResult {
		res, err := gw.SendMessage(ctx, txt, convID)
		return SendResult{CID: cid, Result: res, Err: err}
	}, true
}

// FinishSend reconciles the server response with the optimistic state. The
// loading flag is released on every path. The returned id is nonzero exactly
// once: when a draft send made the backend create the conversation; the
// owner of the conversation list reacts to it.
func (c *Controller) FinishSend(r SendResult, now time.Time) (createdConversation int64) {
	if r.CID != c.sendCID {
		// Stale reply from a conversation switched away from.
		return 0
	}
	c.loading = false
	c.sendCID = ""

	if r.Err != nil {
		// The user's own message stays; the failed assistant turn becomes a
		// visible transcript entry instead of a silent drop.
		logger.Errorf("chat: send failed: %v", r.Err)
		c.nextLocalID++
		c.messages = append(c.messages, Message{
			ID:        c.nextLocalID,
			Role:      RoleAssistant,
			Content:   "❌ " + api.FailureText(r.Err),
			CreatedAt: now,
		})
		return 0
	}

	reply := replyFromAPI(r.Result.Reply)
	c.nextLocalID++
	c.messages = append(c.messages, Message{
		ID:        c.nextLocalID,
		Role:      RoleAssistant,
		Content:   reply.Content,
		CreatedAt: now,
		NeedsCode: reply.Proposal != nil,
		Code:      r.Result.Reply.Code,
		Language:  r.Result.Reply.Language,
	})

	if reply.Proposal != nil {
		c.gate.Offer(*reply.Proposal)
	}

	if c.conversationID == 0 && r.Result.ConversationID != 0 {
		c.conversationID = r.Result.ConversationID
		return r.Result.ConversationID
	}
	return 0
}

// AppendSystem adds a system message, e.g. a formatted execution result.
func (c *Controller) AppendSystem(content string, now time.Time) {
	c.nextLocalID++
	c.messages = append(c.messages, Message{
		ID:        c.nextLocalID,
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: now,
	})
}
