package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

var (
	_ Handler = openWebBrowser{}
	_ Handler = waitFor{}
	_ Handler = goBack{}
	_ Handler = goForward{}
	_ Handler = search{}
	_ Handler = navigate{}
)

// openWebBrowser is a no-op: the browser is already open when a run starts.
type openWebBrowser struct{}

func (openWebBrowser) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(OpenWebBrowser).
		Describe("Opens the web browser.").
		Build()
}

func (openWebBrowser) Invoke(context.Context, Surface, Args) (map[string]any, error) {
	return nil, nil
}

type waitFor struct {
	duration time.Duration
}

func (waitFor) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(Wait5Seconds).
		Describe("Waits for 5 seconds to let dynamic content load.").
		Build()
}

func (w waitFor) Invoke(ctx context.Context, _ Surface, _ Args) (map[string]any, error) {
	timer := time.NewTimer(w.duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type goBack struct{}

func (goBack) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(GoBack).
		Describe("Navigates to the previous page in the browser history.").
		Build()
}

func (goBack) Invoke(ctx context.Context, s Surface, _ Args) (map[string]any, error) {
	return nil, s.GoBack(ctx)
}

type goForward struct{}

func (goForward) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(GoForward).
		Describe("Navigates to the next page in the browser history.").
		Build()
}

func (goForward) Invoke(ctx context.Context, s Surface, _ Args) (map[string]any, error) {
	return nil, s.GoForward(ctx)
}

type search struct {
	url string
}

func (search) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(Search).
		Describe("Opens the search engine home page to start a new search.").
		Build()
}

func (h search) Invoke(ctx context.Context, s Surface, _ Args) (map[string]any, error) {
	return nil, s.Navigate(ctx, h.url)
}

type navigate struct{}

func (navigate) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(Navigate).
		Describe("Navigates directly to the given URL.").
		Param("url", toolschema.String().Describe("The absolute URL to open.")).
		Build()
}

func (navigate) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	url, err := args.String("url")
	if err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("argument 'url' must not be empty")
	}
	if !strings.Contains(url, "://") && !strings.HasPrefix(url, "about:") {
		url = "https://" + url
	}
	return nil, s.Navigate(ctx, url)
}
