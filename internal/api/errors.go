package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/pool"
)

// mapPoolError converts pool errors to HTTP status errors.
func (s *Server) mapPoolError(err error) error {
	if errors.Is(err, pool.ErrManagerClosed) {
		return huma.Error503ServiceUnavailable("pool is shutting down", err)
	}

	switch pool.ErrorCode(err) {
	case pool.CodeMissingClient:
		return huma.Error400BadRequest(err.Error())
	case pool.CodeShareTargetNotFound, pool.CodeProcessNotFound, pool.CodeClientNotFound:
		return huma.Error404NotFound(err.Error())
	case pool.CodeInvalidTopology:
		return huma.Error409Conflict(err.Error())
	}

	s.logger.Error("Pool operation failed", "error", err)
	return huma.Error500InternalServerError("pool operation failed", err)
}

// mapCallError converts channel call errors to HTTP status errors.
func (s *Server) mapCallError(err error) error {
	var rpcErr *channel.RPCError
	switch {
	case errors.As(err, &rpcErr):
		if rpcErr.Code == channel.CodeMethodNotFound {
			return huma.Error404NotFound(rpcErr.Message)
		}
		return huma.Error502BadGateway(rpcErr.Message)
	case errors.Is(err, channel.ErrProcessExited), errors.Is(err, channel.ErrClosed), errors.Is(err, channel.ErrNotBound):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("worker did not answer in time", err)
	}

	s.logger.Error("Worker call failed", "error", err)
	return huma.Error500InternalServerError("worker call failed", err)
}
