package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rogd/internal/api/models"
	"github.com/smazurov/rogd/internal/ctrl"
)

// registerAnimeRoutes registers AniMe matrix endpoints
func (s *Server) registerAnimeRoutes() {
	anime := s.options.Anime
	if anime == nil {
		s.logger.Debug("AniMe matrix not available, skipping anime routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "write-anime-image",
		Method:      http.MethodPost,
		Path:        "/api/anime/image",
		Summary:     "Write AniMe Image",
		Description: "Write two pre-built panes to the matrix and latch them",
		Tags:        []string{"anime"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, input *models.AnimeImageRequest) (*struct{}, error) {
		if err := anime.Submit(ctx, ctrl.WriteImage{Panes: input.Body.Panes}); err != nil {
			return nil, commandError("Failed to write image", err)
		}
		return &struct{}{}, nil
	})

	for _, op := range []struct {
		id, path, summary string
		cmd               ctrl.AnimeCommand
	}{
		{"set-anime", "/api/anime/set", "Select Built-in Animation", ctrl.AnimeSet{}},
		{"apply-anime", "/api/anime/apply", "Apply Built-in Animation", ctrl.AnimeApply{}},
	} {
		cmd := op.cmd
		huma.Register(s.api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        op.path,
			Summary:     op.summary,
			Tags:        []string{"anime"},
			Errors:      []int{500, 503},
		}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
			if err := anime.Submit(ctx, cmd); err != nil {
				return nil, commandError("Failed to send anime command", err)
			}
			return &struct{}{}, nil
		})
	}
}
