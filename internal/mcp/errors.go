// Package mcp exposes the fusion engine as Model Context Protocol tools
// over stdio and streamable HTTP transports.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	ferrors "github.com/jl1nie/rrfusion/internal/errors"
)

// Custom MCP error codes for rrfusion.
const (
	// ErrCodeRunNotFound indicates a run id that is unknown or expired.
	ErrCodeRunNotFound = -32001

	// ErrCodeBackend indicates an upstream HTTP failure.
	ErrCodeBackend = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodePrecondition indicates an operation invalid in the run's state.
	ErrCodePrecondition = -32004

	// ErrCodeIntegrity indicates an identifier that could not be resolved.
	ErrCodeIntegrity = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is the protocol error shape: a JSON-RPC code, the stable adapter
// code string, and a message.
type MCPError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d [%s]: %s", e.Code, e.ErrorCode, e.Message)
}

// MapError converts engine errors to MCP errors. Backend status codes keep
// their "backend_{status}" code string; validation errors map to invalid
// params; transport errors keep their class code.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return &MCPError{Code: ErrCodeTimeout, ErrorCode: ferrors.CodeTimeout, Message: "request timed out or was canceled"}
	}

	var fe *ferrors.FusionError
	if stderrors.As(err, &fe) {
		code := ErrCodeInternalError
		switch fe.Kind {
		case ferrors.KindValidation:
			code = ErrCodeInvalidParams
		case ferrors.KindNotFound:
			code = ErrCodeRunNotFound
		case ferrors.KindPrecondition:
			code = ErrCodePrecondition
		case ferrors.KindBackendHTTP:
			code = ErrCodeBackend
		case ferrors.KindBackendTransport:
			code = ErrCodeTimeout
		case ferrors.KindIntegrity:
			code = ErrCodeIntegrity
		}
		return &MCPError{Code: code, ErrorCode: fe.Code, Message: fe.Message}
	}
	return &MCPError{Code: ErrCodeInternalError, ErrorCode: ferrors.CodeInternal, Message: err.Error()}
}
