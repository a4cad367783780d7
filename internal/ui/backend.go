// Package ui is the terminal chat client. It talks to the router in-process
// and tags every answer with the route that produced it.
package ui

import (
	"context"

	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/router"
)

// Backend answers chat messages.
type Backend interface {
	Respond(ctx context.Context, message, userID string) (router.Result, error)
}

// History is the conversation memory the UI reads at startup and clears on
// request.
type History interface {
	GetHistory(ctx context.Context, userID string) ([]memory.Turn, error)
	Clear(ctx context.Context, userID string) error
}

var (
	_ Backend = (*router.Router)(nil)
	_ History = memory.Store(nil)
)
