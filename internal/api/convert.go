package api

import (
	"fmt"
	"strings"

	"github.com/smazurov/rworker/internal/api/models"
	"github.com/smazurov/rworker/internal/pool"
	"github.com/smazurov/rworker/internal/process"
)

// reservedEnvPrefixes can not be set through the API. They steer the dynamic
// loader or the worker channel.
var reservedEnvPrefixes = []string{"LD_", "DYLD_", "RWORKER_"}

func toForkOptions(data *models.ForkOptionsData) (process.ForkOptions, error) {
	if data == nil {
		return process.ForkOptions{}, nil
	}
	for _, kv := range data.Env {
		if err := checkEnv(kv); err != nil {
			return process.ForkOptions{}, err
		}
	}
	return process.ForkOptions{
		Cwd:        data.Cwd,
		ExtraEnv:   data.Env,
		Args:       data.Args,
		UseCluster: data.UseCluster,
		Silent:     data.Silent,
	}, nil
}

func checkEnv(kv string) error {
	key, _, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return fmt.Errorf("env entry %q is not KEY=VALUE", kv)
	}
	upper := strings.ToUpper(key)
	for _, prefix := range reservedEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return fmt.Errorf("env variable %s is reserved", key)
		}
	}
	return nil
}

func toShareTarget(data *models.ShareData) (*pool.ShareTarget, error) {
	if data == nil {
		return nil, nil
	}
	kind, err := pool.ParseShareKind(data.Kind)
	if err != nil {
		return nil, err
	}
	return &pool.ShareTarget{Kind: kind, ID: data.ID}, nil
}

func toProcessData(info pool.RecordInfo) models.ProcessData {
	clients := make([]string, len(info.Clients))
	for i, id := range info.Clients {
		clients[i] = string(id)
	}

	data := models.ProcessData{
		ID:         info.ID,
		PID:        info.Process.PID,
		Strategy:   string(info.Strategy),
		State:      string(info.Process.State),
		Prepared:   info.Prepared,
		Dedicated:  info.Dedicated,
		Referenced: info.Process.Referenced,
		Clients:    clients,
		ExitCode:   info.Process.ExitCode,
		CreatedAt:  info.CreatedAt,
	}
	if info.Process.LastError != nil {
		data.LastError = info.Process.LastError.Error()
	}
	return data
}

func toClientData(c *pool.Client, rec *pool.Record) models.ClientData {
	return models.ClientData{
		ID:        string(c.ID),
		Proxy:     c.Proxy,
		ProcessID: rec.ID,
		PID:       rec.Handle.Pid(),
		Dedicated: rec.Dedicated(),
	}
}
