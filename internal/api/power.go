package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rogd/internal/api/models"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/ctrl"
)

// registerFanRoutes registers fan/CPU endpoints
func (s *Server) registerFanRoutes() {
	fan := s.options.Fan
	if fan == nil {
		s.logger.Debug("Fan control not available, skipping fan routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-fan",
		Method:      http.MethodGet,
		Path:        "/api/fan",
		Summary:     "Get Fan Level",
		Tags:        []string{"power"},
	}, func(ctx context.Context, input *struct{}) (*models.FanResponse, error) {
		level := fan.Level()
		profiles := fan.Profiles()
		data := models.FanData{
			Level:    level.String(),
			Ordinal:  uint8(level),
			Profiles: make(map[string]models.CPUProfileData, len(codec.FanLevels)),
		}
		for _, l := range codec.FanLevels {
			p := profiles.For(l)
			data.Profiles[l.String()] = models.CPUProfileData{
				MinPercentage: p.MinPercentage,
				MaxPercentage: p.MaxPercentage,
				NoTurbo:       p.NoTurbo,
			}
		}
		return &models.FanResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-fan",
		Method:      http.MethodPost,
		Path:        "/api/fan",
		Summary:     "Set Fan Level",
		Description: "Switch the fan level and apply the CPU power state saved for it",
		Tags:        []string{"power"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, input *models.FanRequest) (*struct{}, error) {
		level, err := codec.ParseFanLevelName(input.Body.Level)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid fan level", err)
		}
		if err := fan.Submit(ctx, ctrl.SetFanLevel{Level: level}); err != nil {
			return nil, commandError("Failed to set fan level", err)
		}
		return &struct{}{}, nil
	})
}

// registerChargeRoutes registers battery charge endpoints
func (s *Server) registerChargeRoutes() {
	charge := s.options.Charge
	if charge == nil {
		s.logger.Debug("Charge control not available, skipping charge routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-charge",
		Method:      http.MethodGet,
		Path:        "/api/charge",
		Summary:     "Get Charge Limit",
		Tags:        []string{"power"},
	}, func(ctx context.Context, input *struct{}) (*models.ChargeResponse, error) {
		return &models.ChargeResponse{Body: models.ChargeData{Limit: charge.Limit()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-charge",
		Method:      http.MethodPost,
		Path:        "/api/charge",
		Summary:     "Set Charge Limit",
		Description: "Values outside 20-100 are written as given; the firmware clamps them",
		Tags:        []string{"power"},
		Errors:      []int{500, 503},
	}, func(ctx context.Context, input *models.ChargeRequest) (*struct{}, error) {
		if err := charge.Submit(ctx, ctrl.SetChargeLimit{Limit: input.Body.Limit}); err != nil {
			return nil, commandError("Failed to set charge limit", err)
		}
		return &struct{}{}, nil
	})
}
