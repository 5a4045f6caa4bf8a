package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rworker/internal/api/models"
)

// registerPoolRoutes registers pool-wide endpoints
func (s *Server) registerPoolRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pool",
		Method:      http.MethodGet,
		Path:        "/api/pool",
		Summary:     "Get Pool",
		Description: "Get pool occupancy and every prepared and assigned worker",
		Tags:        []string{"pool"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.PoolResponse, error) {
		stats := s.manager.Stats()
		records := s.manager.Records()

		data := make([]models.ProcessData, len(records))
		for i, rec := range records {
			data[i] = toProcessData(rec.Info())
		}

		return &models.PoolResponse{
			Body: models.PoolData{
				Prepared:  stats.Prepared,
				Processes: stats.Processes,
				Clients:   stats.Clients,
				Records:   data,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "prepare-workers",
		Method:        http.MethodPost,
		Path:          "/api/pool/prepare",
		Summary:       "Prepare Workers",
		Description:   "Spawn workers into the prepared pool",
		Tags:          []string{"pool"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 500, 503},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.PrepareRequest) (*models.PrepareResponse, error) {
		opts, err := toForkOptions(input.Body.ForkOptions)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		before := s.manager.PreparedCount()
		if err := s.manager.Prepare(ctx, input.Body.Count, opts); err != nil {
			return nil, s.mapPoolError(err)
		}

		after := s.manager.PreparedCount()
		return &models.PrepareResponse{
			Body: models.PrepareResultData{
				Spawned:  max(after-before, 0),
				Prepared: after,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "destroy-prepared",
		Method:      http.MethodDelete,
		Path:        "/api/pool/prepared",
		Summary:     "Destroy Prepared Workers",
		Description: "Terminate every prepared worker and empty the pool",
		Tags:        []string{"pool"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.DestroyPreparedResponse, error) {
		return &models.DestroyPreparedResponse{
			Body: models.DestroyPreparedData{Destroyed: s.manager.DestroyPrepared()},
		}, nil
	})
}
