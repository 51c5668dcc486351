package application

import (
	"context"

	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
)

// ChatSession is bound to one remote conversation. A failed Send leaves the
// session usable.
type ChatSession interface {
	Send(ctx context.Context, text string) (*grounding.Response, error)
}

// SessionFactory creates the conversation's chat session. A non-nil location
// is attached as retrieval context for the whole session.
type SessionFactory interface {
	Create(ctx context.Context, location *domain.LocationCoords) (ChatSession, error)
}

type Locator interface {
	Locate(ctx context.Context) (domain.LocationCoords, error)
}
