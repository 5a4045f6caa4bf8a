package process

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// WorkerFlag marks a command line as a worker invocation.
const WorkerFlag = "--rwProcess"

// ClusterWorkerEnv is set in the environment of processes forked by a Cluster.
const ClusterWorkerEnv = "RWORKER_CLUSTER_WORKER_ID"

// debugFlags are stripped from an inherited exec argv. A worker started with
// them would try to bind the debug port the parent already holds.
var debugFlags = []string{"--inspect", "--inspect-brk"}

// Host describes the current process, the source of every inherited default.
type Host struct {
	Executable string
	// ExecArgv are flags every worker starts with. The serve command's own
	// flags mean nothing to a worker, so CurrentHost leaves it empty.
	ExecArgv        []string
	Cwd             string
	Env             []string
	IsClusterWorker bool
}

// CurrentHost captures the running process.
func CurrentHost() (Host, error) {
	exe, err := os.Executable()
	if err != nil {
		return Host{}, fmt.Errorf("resolve executable: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Host{}, fmt.Errorf("resolve working directory: %w", err)
	}
	_, isWorker := os.LookupEnv(ClusterWorkerEnv)
	return Host{
		Executable:      exe,
		Cwd:             cwd,
		Env:             os.Environ(),
		IsClusterWorker: isWorker,
	}, nil
}

// withoutEnv returns env minus every entry for key.
func withoutEnv(env []string, key string) []string {
	return slices.DeleteFunc(slices.Clone(env), func(kv string) bool {
		return strings.HasPrefix(kv, key+"=")
	})
}

// StripDebugFlags returns a copy of argv without debugger attach flags.
func StripDebugFlags(argv []string) []string {
	out := make([]string, 0, len(argv))
	for _, arg := range argv {
		if isDebugFlag(arg) {
			continue
		}
		out = append(out, arg)
	}
	return out
}

func isDebugFlag(arg string) bool {
	for _, flag := range debugFlags {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	return false
}

// ForkOptions configures how one worker process is spawned.
type ForkOptions struct {
	// Cwd is the working directory. Empty inherits the host's.
	Cwd string
	// Env is the full environment. Nil inherits the host's.
	Env []string
	// ExtraEnv is appended to the resolved environment.
	ExtraEnv []string
	// ExecArgv are flags placed before the worker flag. Nil inherits the
	// host's exec argv with debug flags removed.
	ExecArgv []string
	// ExecPath overrides the worker executable.
	ExecPath string
	// Args are appended after the worker id on direct forks.
	Args []string
	// UseCluster forces the spawn strategy. Nil picks cluster-fork unless
	// the host is itself a cluster worker.
	UseCluster *bool
	// Silent captures worker stdout and stderr into the logger.
	Silent bool
	// UID and GID switch credentials when non-nil.
	UID *uint32
	GID *uint32
	// ExtraFiles are inherited by the worker starting at fd 3.
	ExtraFiles []*os.File
}

// HasCwd reports whether a working directory was set explicitly.
func (o ForkOptions) HasCwd() bool {
	return o.Cwd != ""
}

// Resolve fills every unset field from the host and returns the copy.
// The receiver is not modified.
func (o ForkOptions) Resolve(host Host) ForkOptions {
	r := o
	if r.Cwd == "" {
		r.Cwd = host.Cwd
	}
	if r.Env == nil {
		r.Env = slices.Clone(host.Env)
	} else {
		r.Env = slices.Clone(r.Env)
	}
	r.Env = append(r.Env, r.ExtraEnv...)
	r.ExtraEnv = nil
	if r.ExecArgv == nil {
		r.ExecArgv = StripDebugFlags(host.ExecArgv)
	} else {
		r.ExecArgv = slices.Clone(r.ExecArgv)
	}
	if r.ExecPath == "" {
		r.ExecPath = host.Executable
	}
	if r.UseCluster == nil {
		useCluster := !host.IsClusterWorker
		r.UseCluster = &useCluster
	}
	r.Args = slices.Clone(r.Args)
	r.ExtraFiles = slices.Clone(r.ExtraFiles)
	return r
}

// Cluster reports the resolved strategy. Only meaningful after Resolve.
func (o ForkOptions) Cluster() bool {
	return o.UseCluster != nil && *o.UseCluster
}

// Bool returns a pointer to v, for optional flags such as UseCluster.
func Bool(v bool) *bool {
	return &v
}
