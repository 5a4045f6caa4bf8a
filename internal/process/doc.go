// Package process spawns worker processes and tracks them as Handles.
//
// A Host captures the defaults a worker inherits from the current process:
// executable, exec argv, working directory, environment and whether the
// current process is itself a cluster worker. ForkOptions.Resolve fills the
// unset options from it.
//
// Two Spawner strategies are provided:
//
//   - DirectFork runs `<exec> <execArgv...> --rwProcess <id> <args...>`.
//   - ClusterFork goes through a Cluster, which numbers its workers and
//     passes `--rwProcess <id> <cwd>`. Forking from a cluster worker fails
//     with ErrInvalidTopology.
//
// Both use a Launcher; ExecLauncher is the os/exec implementation.
//
// Example:
//
//	host, _ := process.CurrentHost()
//	launcher := process.NewExecLauncher(logger, nil)
//	spawner := process.NewDirectFork(launcher, logger)
//	opts := process.ForkOptions{UseCluster: process.Bool(false)}.Resolve(host)
//	h, err := spawner.Spawn(ctx, "rworker:process:1:1700000000000", opts)
//	defer h.Kill()
package process
