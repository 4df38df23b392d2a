package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the caller-identified actor id in context.
func ContextWithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, id)
}

// ActorFromContext extracts the actor id from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}
