package graph

import "context"

type fragmentKey struct{}

// FragmentSink receives incremental output of the node currently running.
type FragmentSink func(fragment string)

// WithFragmentSink returns a context that routes EmitFragment calls to sink.
func WithFragmentSink(ctx context.Context, sink FragmentSink) context.Context {
	return context.WithValue(ctx, fragmentKey{}, sink)
}

// EmitFragment forwards a chunk of partial output to the sink installed on ctx.
// Without a sink it is a no-op.
func EmitFragment(ctx context.Context, fragment string) {
	if fragment == "" {
		return
	}
	if sink, ok := ctx.Value(fragmentKey{}).(FragmentSink); ok && sink != nil {
		sink(fragment)
	}
}
