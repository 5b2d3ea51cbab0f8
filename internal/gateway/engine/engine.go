// Package engine declares the contract of the external record engine the
// gateway dispatches decoded messages to. The engine's internals (entity
// validation, workflow execution, security roles) live elsewhere.
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/recordwire/recordgate/internal/gateway/model"
)

// SecurityContext identifies the caller on behalf of whom a message runs.
type SecurityContext struct {
	UserID uuid.UUID
	Token  string
}

// Executor executes one typed message and returns a typed result or an
// error. Execution is synchronous from the gateway's point of view; the
// context carries the only legitimate timeout boundary.
type Executor interface {
	Execute(ctx context.Context, msg *model.Message, sec SecurityContext) (*model.Result, error)
}

// Func adapts a plain function to Executor.
type Func func(ctx context.Context, msg *model.Message, sec SecurityContext) (*model.Result, error)

func (f Func) Execute(ctx context.Context, msg *model.Message, sec SecurityContext) (*model.Result, error) {
	return f(ctx, msg, sec)
}
