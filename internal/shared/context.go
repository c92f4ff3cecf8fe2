package shared

import (
	"context"
	"strconv"
)

// Actor identifies the user behind a mutating call.
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Valid reports whether the actor carries an identity.
func (a Actor) Valid() bool {
	return a.ID > 0
}

// Label renders the actor for logs and audit meta.
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return "user:" + strconv.FormatInt(a.ID, 10)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
