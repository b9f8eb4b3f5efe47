package safety

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrNoDecision is returned when the prompt input closes before an answer.
var ErrNoDecision = errors.New("no safety decision received")

// AutoApprovePolicy approves every flagged action. Intended for unattended
// deployments where an operator has opted in.
type AutoApprovePolicy struct{}

// Decide always returns CONTINUE.
func (AutoApprovePolicy) Decide(context.Context, Prompt) (Decision, error) {
	return DecisionContinue, nil
}

// DenyPolicy refuses every flagged action.
type DenyPolicy struct{}

// Decide always returns TERMINATE.
func (DenyPolicy) Decide(context.Context, Prompt) (Decision, error) {
	return DecisionTerminate, nil
}

// PromptPolicy asks a human on a terminal. Invalid answers are re-asked.
//
// A single reader goroutine owns the input and reads one line per request,
// so it never consumes input while no prompt is waiting. A line that arrives
// after its prompt was abandoned answers the next prompt.
type PromptPolicy struct {
	mu      sync.Mutex
	out     io.Writer
	scanner *bufio.Scanner

	startReader sync.Once
	closeOnce   sync.Once
	requests    chan struct{}
	lines       chan inputLine
	quit        chan struct{}

	// Guarded by mu.
	outstanding bool
	inputErr    error
}

type inputLine struct {
	text string
	err  error
}

// NewPromptPolicy reads answers from in and writes prompts to out.
func NewPromptPolicy(in io.Reader, out io.Writer) *PromptPolicy {
	return &PromptPolicy{
		out:      out,
		scanner:  bufio.NewScanner(in),
		requests: make(chan struct{}),
		lines:    make(chan inputLine, 1),
		quit:     make(chan struct{}),
	}
}

// Close stops the reader goroutine once its current read, if any, returns.
// Later prompts terminate with ErrNoDecision.
func (p *PromptPolicy) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	return nil
}

func (p *PromptPolicy) readLines() {
	for {
		select {
		case <-p.requests:
		case <-p.quit:
			return
		}
		if !p.scanner.Scan() {
			err := p.scanner.Err()
			if err == nil {
				err = ErrNoDecision
			}
			p.lines <- inputLine{err: err}
			return
		}
		p.lines <- inputLine{text: p.scanner.Text()}
	}
}

// Decide prompts until a yes/no answer arrives, the input closes, or ctx ends.
func (p *PromptPolicy) Decide(ctx context.Context, pr Prompt) (Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inputErr != nil {
		return DecisionTerminate, p.inputErr
	}
	select {
	case <-p.quit:
		return DecisionTerminate, ErrNoDecision
	default:
	}
	p.startReader.Do(func() { go p.readLines() })

	fmt.Fprintf(p.out, "\nSafety confirmation required for action '%s'.\n", pr.ActionName)
	if pr.Explanation != "" {
		fmt.Fprintf(p.out, "Explanation: %s\n", pr.Explanation)
	}

	for {
		fmt.Fprint(p.out, "Do you wish to proceed? [Y]es/[N]o\n")
		if !p.outstanding {
			select {
			case p.requests <- struct{}{}:
				p.outstanding = true
			case <-p.quit:
				return DecisionTerminate, ErrNoDecision
			case <-ctx.Done():
				return DecisionTerminate, fmt.Errorf("safety prompt abandoned: %w", ctx.Err())
			}
		}

		select {
		case line := <-p.lines:
			p.outstanding = false
			if line.err != nil {
				p.inputErr = line.err
				return DecisionTerminate, line.err
			}
			if d, ok := parseAnswer(line.text); ok {
				return d, nil
			}
		case <-ctx.Done():
			return DecisionTerminate, fmt.Errorf("safety prompt abandoned: %w", ctx.Err())
		}
	}
}

func parseAnswer(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "ye", "yes":
		return DecisionContinue, true
	case "n", "no":
		return DecisionTerminate, true
	default:
		return "", false
	}
}
