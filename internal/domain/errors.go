// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a malformed or incomplete request.
var ErrValidation = errors.New("validation failed")

// ErrConfiguration indicates an unknown or unsupported configured mode.
// It is fatal at startup: the process must not serve traffic.
var ErrConfiguration = errors.New("configuration error")

// ErrToolNotFound indicates a tool name that is not in the registry.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateTool indicates a second registration under an existing tool name.
var ErrDuplicateTool = errors.New("duplicate tool registration")

// ErrStageFailed indicates a pipeline stage transform failed.
var ErrStageFailed = errors.New("pipeline stage failed")

// ErrTaskExecution indicates an uncaught failure during background task execution.
var ErrTaskExecution = errors.New("task execution failed")
