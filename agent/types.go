// Package agent provides the tool orchestration loop.
//
// Contains the response and outcome types produced by loop execution.
package agent

import (
	"errors"

	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/model"
)

// Sentinel errors for loop outcomes.
var (
	// ErrClientUnavailable indicates the LLM client could not be reached.
	ErrClientUnavailable = errors.New("llm client unavailable")
	// ErrMaxIterations indicates the iteration bound was exceeded.
	ErrMaxIterations = errors.New("maximum iterations exceeded")
)

// Step is an alias for model.Step for loop iteration records.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metrics.
type ToolCall = model.ToolCall

// Metadata contains metadata about loop execution.
type Metadata struct {
	ExecutionTimeMs uint64
	AgentName       *string
	ToolCalls       []ToolCall
	TokenUsage      *llm.TokenUsage
	LLMCalls        int // Number of LLM calls made during the run
	FailedCalls     int // Number of tool calls that failed
}

// ResponseType indicates the outcome of a loop run.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseMaxIterations
)

// Response represents the outcome of a loop run.
type Response struct {
	Type     ResponseType
	Result   string // For Success
	Err      error  // For Failure and MaxIterations
	Steps    []Step
	Metadata Metadata
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(result string, steps []Step, meta Metadata) Response {
	return Response{
		Type:     ResponseSuccess,
		Result:   result,
		Steps:    steps,
		Metadata: meta,
	}
}

// NewFailureResponse creates a failure response.
func NewFailureResponse(err error, steps []Step, meta Metadata) Response {
	return Response{
		Type:     ResponseFailure,
		Err:      err,
		Steps:    steps,
		Metadata: meta,
	}
}

// NewMaxIterationsResponse creates a response for an exceeded iteration bound.
func NewMaxIterationsResponse(err error, steps []Step, meta Metadata) Response {
	return Response{
		Type:     ResponseMaxIterations,
		Err:      err,
		Steps:    steps,
		Metadata: meta,
	}
}

// ResultText returns the result string (for success) or the error text.
func (r Response) ResultText() string {
	switch r.Type {
	case ResponseSuccess:
		return r.Result
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return ""
	}
}

// IsSuccess checks if the run completed with a final answer.
func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}
