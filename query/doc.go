// Package query is the read path of the dashboard: a keyed cache of
// asynchronous loads with deduplication, stale-while-revalidate and
// error-boundary recovery.
//
// A read never blocks. Client.Read returns a Future that is either already
// resolved (fresh value, stale value, stored error) or bound to the single
// in-flight load for its key. Awaiting the future is the suspension point.
//
//	c := query.NewClient(query.WithPolicy(cache.DocsPolicy()))
//	f := c.Read(ctx, cache.MustKey("docs", "projects"), loadList)
//	v, err := f.Await(ctx)
//
// # Entry lifecycle
//
// Every key moves empty -> pending -> success|error. A success value stays
// servable forever; once older than its staleness window a read serves it
// and starts one background refresh that replaces it in place. An error is
// served to every reader until it is reset, normally by a Boundary.
//
// # Ownership of writes
//
// Each load carries a handle id recorded on the entry when it starts. On
// completion the result is written only if the entry still carries that id.
// Invalidation, SetData and a newer load all change or drop the id, so an
// abandoned load can never overwrite newer state.
//
// # Supersession
//
// A Selector tracks the key a view is parked on. Switching keys releases
// waiters of the previous future with ErrSuperseded; the previous load still
// completes into its own key's entry but never into the new one.
package query
