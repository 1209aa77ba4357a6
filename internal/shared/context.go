package shared

import "context"

// Actor is the authenticated caller as resolved by the upstream identity
// layer. The company id selects the tenant partition; membership has already
// been confirmed before the request reaches this process.
type Actor struct {
	UserID    int64
	CompanyID int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means the
// request was not identified.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
