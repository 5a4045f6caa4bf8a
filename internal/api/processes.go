package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rworker/internal/api/models"
)

// callTimeout bounds a forwarded worker call.
const callTimeout = 30 * time.Second

// registerProcessRoutes registers per-process endpoints
func (s *Server) registerProcessRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/api/processes/{id}",
		Summary:     "Get Process",
		Description: "Get a prepared or assigned worker process",
		Tags:        []string{"processes"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		ID string `path:"id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	}) (*models.ProcessResponse, error) {
		rec, err := s.manager.Record(input.ID)
		if err != nil {
			return nil, s.mapPoolError(err)
		}

		return &models.ProcessResponse{Body: toProcessData(rec.Info())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "destroy-process",
		Method:        http.MethodDelete,
		Path:          "/api/processes/{id}",
		Summary:       "Destroy Process",
		Description:   "Terminate a worker and drop every client assigned to it",
		Tags:          []string{"processes"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
		Security:      withAuth(),
	}, func(_ context.Context, input *struct {
		ID string `path:"id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	}) (*struct{}, error) {
		if err := s.manager.Destroy(input.ID); err != nil {
			return nil, s.mapPoolError(err)
		}

		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "call-process",
		Method:      http.MethodPost,
		Path:        "/api/processes/{id}/call",
		Summary:     "Call Process",
		Description: "Forward a method call over the worker's channel",
		Tags:        []string{"processes"},
		Errors:      []int{401, 404, 409, 500, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ProcessCallRequest) (*models.ProcessCallResponse, error) {
		rec, err := s.manager.Record(input.ID)
		if err != nil {
			return nil, s.mapPoolError(err)
		}

		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		var result any
		if err := rec.Channel.Call(ctx, input.Body.Method, input.Body.Params, &result); err != nil {
			return nil, s.mapCallError(err)
		}

		return &models.ProcessCallResponse{
			Body: models.ProcessCallResultData{Result: result},
		}, nil
	})
}
