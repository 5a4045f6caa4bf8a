package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rworker/internal/api/models"
	"github.com/smazurov/rworker/internal/pool"
)

// registerClientRoutes registers client assignment endpoints
func (s *Server) registerClientRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "assign-client",
		Method:        http.MethodPost,
		Path:          "/api/clients",
		Summary:       "Assign Client",
		Description:   "Create a client and assign it a worker process",
		Tags:          []string{"clients"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 404, 409, 500, 503},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.AssignRequest) (*models.ClientResponse, error) {
		share, err := toShareTarget(input.Body.Share)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		opts, err := toForkOptions(input.Body.ForkOptions)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		client := pool.NewClient(pool.ClientOptions{
			OwnProcess:   input.Body.OwnProcess,
			ShareProcess: share,
			ForkOptions:  opts,
		})

		rec, err := s.manager.Assign(ctx, client)
		if err != nil {
			return nil, s.mapPoolError(err)
		}

		return &models.ClientResponse{Body: toClientData(client, rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/api/clients/{id}",
		Summary:     "Get Client",
		Description: "Get a client's assignment",
		Tags:        []string{"clients"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		ID string `path:"id" doc:"Client identifier"`
	}) (*models.ClientResponse, error) {
		client, rec, err := s.manager.Lookup(pool.ClientID(input.ID))
		if err != nil {
			return nil, s.mapPoolError(err)
		}

		return &models.ClientResponse{Body: toClientData(client, rec)}, nil
	})
}
