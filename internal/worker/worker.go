package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/logging"
	"github.com/smazurov/rworker/internal/process"
)

// Invocation is the parsed worker part of a command line.
type Invocation struct {
	ID string
	// Cwd is set for cluster workers, which receive it as the argument after
	// the id.
	Cwd string
	// Args are the arguments after the id on direct forks.
	Args []string
	// ClusterWorkerID is the sequence number a cluster leader assigned.
	ClusterWorkerID string
}

// Detect finds the worker flag in args and parses what follows it.
func Detect(args []string) (Invocation, bool) {
	i := slices.Index(args, process.WorkerFlag)
	if i < 0 || i+1 >= len(args) || args[i+1] == "" {
		return Invocation{}, false
	}

	inv := Invocation{ID: args[i+1]}
	rest := args[i+2:]

	if clusterID, ok := os.LookupEnv(process.ClusterWorkerEnv); ok {
		inv.ClusterWorkerID = clusterID
		if len(rest) > 0 {
			inv.Cwd = rest[0]
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		inv.Args = slices.Clone(rest)
	}
	return inv, true
}

// PingResult answers the ping method.
type PingResult struct {
	ID  string `json:"id"`
	PID int    `json:"pid"`
	Cwd string `json:"cwd"`
}

// EnvParams selects the variable read by the env method.
type EnvParams struct {
	Name string `json:"name"`
}

// EnvResult answers the env method.
type EnvResult struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// ReadyParams is sent with the ready notification.
type ReadyParams struct {
	ID  string `json:"id"`
	PID int    `json:"pid"`
}

// Run changes into the invocation's directory, opens the channel the parent
// prepared and serves it until the channel closes or ctx ends.
func Run(ctx context.Context, inv Invocation, logger logging.Logger) error {
	if inv.Cwd != "" {
		if err := os.Chdir(inv.Cwd); err != nil {
			return fmt.Errorf("change directory: %w", err)
		}
	}

	ch, err := channel.Open(inv.ID, logger)
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	return Serve(ctx, inv, ch, logger)
}

// Serve installs the built-in methods on ch, announces readiness and blocks
// until ch closes or ctx ends. ch is closed on return.
func Serve(ctx context.Context, inv Invocation, ch channel.Channel, logger logging.Logger) error {
	defer ch.Close()

	ch.Handle(channel.MethodPing, func(context.Context, json.RawMessage) (any, error) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return PingResult{ID: inv.ID, PID: os.Getpid(), Cwd: cwd}, nil
	})
	ch.Handle(channel.MethodEnv, func(_ context.Context, raw json.RawMessage) (any, error) {
		var params EnvParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		if params.Name == "" {
			return nil, errors.New("name is required")
		}
		value, found := os.LookupEnv(params.Name)
		return EnvResult{Value: value, Found: found}, nil
	})

	if err := ch.Notify(ctx, channel.MethodReady, ReadyParams{ID: inv.ID, PID: os.Getpid()}); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}
	logger.Info("Worker ready", "id", inv.ID, "pid", os.Getpid(), "cluster_worker", inv.ClusterWorkerID)

	select {
	case <-ctx.Done():
		logger.Info("Worker stopping", "id", inv.ID, "reason", ctx.Err())
		return nil
	case <-ch.Done():
		logger.Info("Channel closed, worker exiting", "id", inv.ID)
		return nil
	}
}
