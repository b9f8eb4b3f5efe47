package actions

import (
	"context"
	"time"

	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// Names of the standard browser vocabulary.
const (
	OpenWebBrowser = "open_web_browser"
	Wait5Seconds   = "wait_5_seconds"
	GoBack         = "go_back"
	GoForward      = "go_forward"
	Search         = "search"
	Navigate       = "navigate"
	ClickAt        = "click_at"
	HoverAt        = "hover_at"
	TypeTextAt     = "type_text_at"
	KeyCombination = "key_combination"
	ScrollDocument = "scroll_document"
	ScrollAt       = "scroll_at"
	DragAndDrop    = "drag_and_drop"
)

// Handler implements one action. The declaration is built once and never
// changes; Invoke receives the raw argument mapping from the model.
type Handler interface {
	Declaration() toolschema.ToolDeclaration
	Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error)
}

// Registry is a closed, name-indexed set of handlers resolved at startup.
type Registry struct {
	handlers map[string]Handler
	set      *toolschema.Set
}

// NewRegistry indexes the given handlers by their declared names. A later
// handler with the same name replaces an earlier one.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	decls := make([]toolschema.ToolDeclaration, 0, len(handlers))
	for _, h := range handlers {
		d := h.Declaration()
		r.handlers[d.Name()] = h
		decls = append(decls, d)
	}
	r.set = toolschema.NewSet(decls...)
	return r
}

// StandardOptions tunes the standard vocabulary.
type StandardOptions struct {
	// SearchURL is opened by the search action.
	SearchURL string
	// WaitDuration is how long wait_5_seconds sleeps.
	WaitDuration time.Duration
	// DocumentScrollStep is the horizontal scroll_document offset in pixels.
	DocumentScrollStep int
	// HighlightPointer draws pointer feedback before pointer actions.
	HighlightPointer bool
}

// DefaultStandardOptions mirrors the browser defaults.
func DefaultStandardOptions() StandardOptions {
	return StandardOptions{
		SearchURL:          "https://www.google.com/",
		WaitDuration:       5 * time.Second,
		DocumentScrollStep: 400,
	}
}

// NewStandardRegistry builds the full browser vocabulary.
func NewStandardRegistry(opts StandardOptions) *Registry {
	def := DefaultStandardOptions()
	if opts.SearchURL == "" {
		opts.SearchURL = def.SearchURL
	}
	if opts.WaitDuration <= 0 {
		opts.WaitDuration = def.WaitDuration
	}
	if opts.DocumentScrollStep <= 0 {
		opts.DocumentScrollStep = def.DocumentScrollStep
	}
	pointer := pointerOptions{highlight: opts.HighlightPointer}

	return NewRegistry(
		openWebBrowser{},
		waitFor{duration: opts.WaitDuration},
		goBack{},
		goForward{},
		search{url: opts.SearchURL},
		navigate{},
		clickAt{pointer},
		hoverAt{pointer},
		typeTextAt{pointer},
		keyCombination{},
		scrollDocument{step: opts.DocumentScrollStep},
		scrollAt{pointer},
		dragAndDrop{pointer},
	)
}

// Lookup resolves a handler by action name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Declarations returns every declaration in registration order.
func (r *Registry) Declarations() []toolschema.ToolDeclaration { return r.set.All() }

// Set exposes the declarations as a lookup set.
func (r *Registry) Set() *toolschema.Set { return r.set }

// Names returns the registered action names in registration order.
func (r *Registry) Names() []string { return r.set.Names() }
