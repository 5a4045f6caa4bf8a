// Package pool assigns worker processes to clients.
//
// A Factory spawns one worker through the direct or cluster strategy and
// binds a channel to it, producing a Record. The Manager keeps prepared
// records in a PreparedPool and assigned ones in a Registry keyed by process
// id and by client id.
//
// Assign resolves a client in this order:
//
//  1. ShareProcess set: join the record the target names, or fail with
//     ErrShareTargetNotFound.
//  2. Assignments exist and OwnProcess is false: join the earliest
//     registered non-dedicated record.
//  3. Otherwise a new record: taken from the prepared pool when the client
//     is non-dedicated and sets no working directory, spawned otherwise.
//
// Example:
//
//	mgr := pool.NewManager(&pool.ManagerOptions{Factory: factory, Events: bus})
//	_ = mgr.Prepare(ctx, 2, process.ForkOptions{})
//	a := pool.NewClient(pool.ClientOptions{})
//	rec, err := mgr.Assign(ctx, a)
//	b := pool.NewClient(pool.ClientOptions{ShareProcess: pool.ShareWithClient(a)})
//	_, err = mgr.Assign(ctx, b) // same record as a
package pool
