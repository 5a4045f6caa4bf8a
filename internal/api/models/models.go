package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// ForkOptionsData holds the spawn options a caller may override. The worker
// executable and its exec argv always come from the host.
type ForkOptionsData struct {
	Cwd        string   `json:"cwd,omitempty" example:"/srv/app" doc:"Worker working directory"`
	Env        []string `json:"env,omitempty" doc:"KEY=VALUE pairs added to the inherited environment"`
	Args       []string `json:"args,omitempty" doc:"Extra arguments for direct forks"`
	UseCluster *bool    `json:"use_cluster,omitempty" doc:"Force cluster-fork (true) or direct-fork (false)"`
	Silent     bool     `json:"silent,omitempty" doc:"Capture worker stdout and stderr into the log"`
}

// Process models
type ProcessData struct {
	ID         string    `json:"id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	PID        int       `json:"pid" example:"4242" doc:"Operating system process id"`
	Strategy   string    `json:"strategy" example:"direct" doc:"Spawn strategy: direct or cluster"`
	State      string    `json:"state" example:"running" doc:"Process state: running or exited"`
	Prepared   bool      `json:"prepared" example:"false" doc:"Whether the process waits in the prepared pool"`
	Dedicated  bool      `json:"dedicated" example:"false" doc:"Whether the process is owned by a single client"`
	Referenced bool      `json:"referenced" example:"true" doc:"Whether shutdown waits for this process"`
	Clients    []string  `json:"clients" doc:"Ids of clients assigned to this process"`
	ExitCode   int       `json:"exit_code,omitempty" example:"0" doc:"Exit code once exited"`
	LastError  string    `json:"last_error,omitempty" doc:"Exit error, if any"`
	CreatedAt  time.Time `json:"created_at" doc:"When the process was spawned"`
}

type ProcessResponse struct {
	Body ProcessData
}

type ProcessCallRequest struct {
	ID   string `path:"id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	Body ProcessCallData
}

type ProcessCallData struct {
	Method string `json:"method" minLength:"1" example:"ping" doc:"Method served by the worker"`
	Params any    `json:"params,omitempty" doc:"Method parameters"`
}

type ProcessCallResultData struct {
	Result any `json:"result" doc:"Value returned by the worker"`
}

type ProcessCallResponse struct {
	Body ProcessCallResultData
}

// Pool models
type PoolData struct {
	Prepared  int           `json:"prepared" example:"2" doc:"Processes waiting in the prepared pool"`
	Processes int           `json:"processes" example:"3" doc:"Assigned processes"`
	Clients   int           `json:"clients" example:"5" doc:"Assigned clients"`
	Records   []ProcessData `json:"records" doc:"Prepared records followed by assigned ones"`
}

type PoolResponse struct {
	Body PoolData
}

type PrepareRequest struct {
	Body PrepareData
}

type PrepareData struct {
	Count       int              `json:"count" minimum:"1" maximum:"256" example:"2" doc:"Number of processes to spawn"`
	ForkOptions *ForkOptionsData `json:"fork_options,omitempty" doc:"Spawn options"`
}

type PrepareResultData struct {
	Spawned  int `json:"spawned" example:"2" doc:"Processes spawned by this request"`
	Prepared int `json:"prepared" example:"4" doc:"Pool size after the request"`
}

type PrepareResponse struct {
	Body PrepareResultData
}

type DestroyPreparedData struct {
	Destroyed int `json:"destroyed" example:"4" doc:"Number of prepared processes discarded"`
}

type DestroyPreparedResponse struct {
	Body DestroyPreparedData
}

// Client models
type ShareData struct {
	Kind string `json:"kind" enum:"client,proxy,process" example:"proxy" doc:"How id identifies the assignment to join"`
	ID   string `json:"id" minLength:"1" doc:"Client id, client proxy or process id"`
}

type AssignRequest struct {
	Body AssignData
}

type AssignData struct {
	OwnProcess  bool             `json:"own_process,omitempty" doc:"Demand a dedicated process"`
	Share       *ShareData       `json:"share,omitempty" doc:"Join an existing assignment"`
	ForkOptions *ForkOptionsData `json:"fork_options,omitempty" doc:"Spawn options when a new process is needed"`
}

type ClientData struct {
	ID        string `json:"id" example:"6f1c7a52-3c1e-4a8e-9d7b-1b2f0e5c9a10" doc:"Client identifier"`
	Proxy     string `json:"proxy" example:"0b8d4c7e-5a2f-4b1d-8e3c-7f6a9d2e1c40" doc:"Public handle other clients may share with"`
	ProcessID string `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Assigned process"`
	PID       int    `json:"pid" example:"4242" doc:"Operating system process id"`
	Dedicated bool   `json:"dedicated" example:"false" doc:"Whether the assigned process is dedicated"`
}

type ClientResponse struct {
	Body ClientData
}
