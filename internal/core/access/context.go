package access

import "context"

type actorContextKey struct{}

// WithActor はコンテキストに Actor を格納します。
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext はコンテキストから Actor を取り出します。
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	return actor, ok && actor != nil
}

// RequireActor は Actor を取り出し、存在しなければ ErrUnauthenticated を返します。
func RequireActor(ctx context.Context) (*Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	return actor, nil
}
