package schemas

import (
	"strings"
	"sync"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// PartKind is the discriminator for the Part variant.
type PartKind string

const (
	PartText           PartKind = "text"
	PartImage          PartKind = "image"
	PartActionRequest  PartKind = "action_request"
	PartActionResponse PartKind = "action_response"
)

// MIMETypePNG is the only image encoding produced by the observation surface.
const MIMETypePNG = "image/png"

// Blob is raw inline media attached to a turn.
type Blob struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Part is a single element of a turn. Exactly one payload field is set,
// matching Kind.
type Part struct {
	Kind    PartKind `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Thought bool     `json:"thought,omitempty"`
	// Signature is an opaque provider token that must be sent back
	// unchanged with the part it arrived on.
	Signature []byte          `json:"signature,omitempty"`
	Image     *Blob           `json:"image,omitempty"`
	Request   *ActionRequest  `json:"request,omitempty"`
	Response  *ActionResponse `json:"response,omitempty"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart builds an inline image part.
func ImagePart(mimeType string, data []byte) Part {
	return Part{Kind: PartImage, Image: &Blob{MIMEType: mimeType, Data: data}}
}

// RequestPart wraps an action request emitted by the model.
func RequestPart(req ActionRequest) Part {
	return Part{Kind: PartActionRequest, Request: &req}
}

// ResponsePart wraps the outcome of a dispatched action.
func ResponsePart(resp ActionResponse) Part {
	return Part{Kind: PartActionResponse, Response: &resp}
}

// Turn is one exchange unit in the conversation.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// ActionRequests returns the action requests of the turn in emitted order.
func (t Turn) ActionRequests() []ActionRequest {
	var reqs []ActionRequest
	for _, p := range t.Parts {
		if p.Kind == PartActionRequest && p.Request != nil {
			reqs = append(reqs, *p.Request)
		}
	}
	return reqs
}

// Text joins the non-thought text parts of the turn with a single space.
func (t Turn) Text() string {
	var texts []string
	for _, p := range t.Parts {
		if p.Kind == PartText && !p.Thought && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Conversation is the append-only transcript of a single run. Turns are
// never removed or rewritten once appended.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation starts a transcript with the given opening turns.
func NewConversation(initial ...Turn) *Conversation {
	c := &Conversation{}
	for _, t := range initial {
		c.Append(t)
	}
	return c
}

// Append adds a turn to the end of the transcript.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]Part, len(t.Parts))
	copy(parts, t.Parts)
	c.turns = append(c.turns, Turn{Role: t.Role, Parts: parts})
}

// Turns returns a snapshot of the transcript. Mutating the returned slice
// does not affect the conversation.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of turns appended so far.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
