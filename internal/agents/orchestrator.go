// Package agents routes a user request to the right agent flow and runs it.
// The router classifies the request as create, modify, or answer; the design
// flows must produce valid SVG, the answer flow free text.
package agents

import (
	"context"
	"fmt"
	"strings"

	"svgforge-go/internal/svg"
	"svgforge-go/internal/upstream/gemini"

	log "github.com/sirupsen/logrus"
)

// Intent is the router's classification of a request.
type Intent string

const (
	IntentCreate Intent = "create"
	IntentModify Intent = "modify"
	IntentAnswer Intent = "answer"
)

// FlowError is a user-visible failure: bad input or agent output that did
// not pass validation. Handlers report it in the response body instead of
// failing the request.
type FlowError struct {
	Msg string
}

func (e *FlowError) Error() string { return e.Msg }

func flowErrorf(format string, args ...any) error {
	return &FlowError{Msg: fmt.Sprintf(format, args...)}
}

// Generator abstracts the upstream model call so flows can be tested
// without a live endpoint.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req gemini.Request) (string, error)
}

// Input is one generation request.
type Input struct {
	Prompt string
	// Mode is the client's declared mode ("create" or "modify") and must
	// agree with the routed intent for design flows.
	Mode        string
	FrameName   string
	ElementInfo string
	// Base64 PNG captures, required for modify.
	FrameImage   string
	ElementImage string
}

// Result is the outcome of a completed flow.
type Result struct {
	Intent Intent
	// Exactly one of SVG / Answer is set.
	SVG    string
	Answer string
}

// Orchestrator runs the route-then-execute pipeline.
type Orchestrator struct {
	gen Generator
}

func NewOrchestrator(gen Generator) *Orchestrator {
	return &Orchestrator{gen: gen}
}

// Route classifies the request. Unexpected router output is an error, not a
// silent fallback.
func (o *Orchestrator) Route(ctx context.Context, apiKey string, in Input) (Intent, error) {
	prompt := fmt.Sprintf("User Request: %q", in.Prompt)
	if in.FrameName != "" || in.ElementInfo != "" {
		prompt += fmt.Sprintf("\nFigma Context: frame=%q element=%q", in.FrameName, in.ElementInfo)
	}

	raw, err := o.gen.Generate(ctx, apiKey, gemini.Request{
		SystemPrompt: routerSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return "", flowErrorf("Could not determine intent: %v", err)
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(raw)))
	switch intent {
	case IntentCreate, IntentModify, IntentAnswer:
		return intent, nil
	}
	return "", flowErrorf("Intent determination failed: router returned unexpected value %q.", raw)
}

// Run executes the full pipeline for one request.
func (o *Orchestrator) Run(ctx context.Context, apiKey string, in Input) (Result, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return Result{}, flowErrorf("Missing 'userPrompt'")
	}

	intent, err := o.Route(ctx, apiKey, in)
	if err != nil {
		return Result{}, err
	}
	log.WithField("intent", intent).Debug("Request routed")

	switch {
	case intent == IntentCreate && in.Mode == "create":
		out, err := o.runCreate(ctx, apiKey, in)
		if err != nil {
			return Result{}, err
		}
		return Result{Intent: intent, SVG: out}, nil

	case intent == IntentModify && in.Mode == "modify":
		out, err := o.runModify(ctx, apiKey, in)
		if err != nil {
			return Result{}, err
		}
		return Result{Intent: intent, SVG: out}, nil

	case intent == IntentAnswer:
		out, err := o.runAnswer(ctx, apiKey, in)
		if err != nil {
			return Result{}, err
		}
		return Result{Intent: intent, Answer: out}, nil
	}

	// Routed to a design flow the client did not prepare for (no frame or
	// component selected).
	return Result{}, flowErrorf("Please select frame or component")
}

func (o *Orchestrator) runCreate(ctx context.Context, apiKey string, in Input) (string, error) {
	userPrompt := fmt.Sprintf("You have been tasked to design: %s\n\nEnhance it with deeper color palettes and organic shapes to add depth and visual interest.", in.Prompt)

	out, err := o.gen.Generate(ctx, apiKey, gemini.Request{
		SystemPrompt: createSystemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return "", flowErrorf("Create agent failed: %v", err)
	}
	if !svg.Valid(out) {
		return "", flowErrorf("Create agent response is not valid SVG. Snippet: %s", snippet(out))
	}
	return svg.StripFences(out), nil
}

func (o *Orchestrator) runModify(ctx context.Context, apiKey string, in Input) (string, error) {
	if in.FrameImage == "" {
		return "", flowErrorf("Missing 'frameDataBase64' for modify mode")
	}
	if in.ElementImage == "" {
		return "", flowErrorf("Missing 'elementDataBase64' for modify mode")
	}
	if in.ElementInfo == "" {
		return "", flowErrorf("Missing 'elementInfo' in context for modify mode")
	}

	frameName := in.FrameName
	if frameName == "" {
		frameName = "N/A"
	}
	userPrompt := fmt.Sprintf("Modification Request: %q\n\nContext:\nFrame Name: %s\nElement Info: %s", in.Prompt, frameName, in.ElementInfo)

	out, err := o.gen.Generate(ctx, apiKey, gemini.Request{
		SystemPrompt: modifySystemPrompt,
		UserPrompt:   userPrompt,
		Images:       []string{in.FrameImage, in.ElementImage},
	})
	if err != nil {
		return "", flowErrorf("Modify agent failed: %v", err)
	}
	if !svg.Valid(out) {
		return "", flowErrorf("Modify agent response is not valid SVG. Snippet: %s", snippet(out))
	}
	return svg.StripFences(out), nil
}

func (o *Orchestrator) runAnswer(ctx context.Context, apiKey string, in Input) (string, error) {
	out, err := o.gen.Generate(ctx, apiKey, gemini.Request{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   in.Prompt,
	})
	if err != nil {
		return "", flowErrorf("Answer agent failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		return "I could not find specific information regarding your query.", nil
	}
	return out, nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
