package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rogd/internal/api/models"
	"github.com/smazurov/rogd/internal/ctrl"
)

// registerBIOSRoutes registers BIOS setting endpoints
func (s *Server) registerBIOSRoutes() {
	bios := s.options.BIOS
	if bios == nil {
		s.logger.Debug("BIOS settings not available, skipping BIOS routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-bios",
		Method:      http.MethodGet,
		Path:        "/api/bios",
		Summary:     "Get BIOS Settings",
		Tags:        []string{"bios"},
		Errors:      []int{500},
	}, func(ctx context.Context, input *struct{}) (*models.BIOSResponse, error) {
		var data models.BIOSData
		support := bios.Supported()
		if support.DedicatedGfx {
			on, err := bios.DedicatedGfx()
			if err != nil {
				return nil, huma.Error500InternalServerError("Failed to read graphics mode", err)
			}
			data.DedicatedGfx = &on
		}
		if support.PostSound {
			on, err := bios.PostSound()
			if err != nil {
				return nil, huma.Error500InternalServerError("Failed to read POST sound", err)
			}
			data.PostSound = &on
		}
		return &models.BIOSResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-bios-gfx",
		Method:      http.MethodPost,
		Path:        "/api/bios/gfx",
		Summary:     "Set Graphics Mode",
		Description: "Select dedicated or hybrid graphics for the next boot and regenerate the initramfs",
		Tags:        []string{"bios"},
		Errors:      []int{404, 500, 503},
	}, func(ctx context.Context, input *models.GfxRequest) (*struct{}, error) {
		if err := bios.Submit(ctx, ctrl.SetDedicatedGfx{Dedicated: input.Body.Dedicated}); err != nil {
			return nil, commandError("Failed to set graphics mode", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-bios-post-sound",
		Method:      http.MethodPost,
		Path:        "/api/bios/post-sound",
		Summary:     "Set POST Sound",
		Tags:        []string{"bios"},
		Errors:      []int{404, 500, 503},
	}, func(ctx context.Context, input *models.PostSoundRequest) (*struct{}, error) {
		if err := bios.Submit(ctx, ctrl.SetPostSound{Enabled: input.Body.Enabled}); err != nil {
			return nil, commandError("Failed to set POST sound", err)
		}
		return &struct{}{}, nil
	})
}

// registerSupportedRoutes registers the capability summary endpoint
func (s *Server) registerSupportedRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-supported",
		Method:      http.MethodGet,
		Path:        "/api/supported",
		Summary:     "Supported Features",
		Description: "Report the detected board and which controllers are active",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.SupportedResponse, error) {
		return &models.SupportedResponse{Body: s.supported()}, nil
	})
}

func (s *Server) supported() models.SupportedData {
	o := s.options
	data := models.SupportedData{
		BoardName:     o.Laptop.DMI.BoardName,
		ProductFamily: o.Laptop.DMI.ProductFamily,
		Matched:       o.Laptop.Matched,
		KbdLED:        o.KbdLED != nil,
		KbdModes:      []string{},
		Anime:         o.Anime != nil,
		FanCPU:        o.Fan != nil,
		Charge:        o.Charge != nil,
	}
	if o.KbdLED != nil {
		for _, m := range o.KbdLED.State().Supported {
			data.KbdModes = append(data.KbdModes, m.String())
		}
	}
	if o.BIOS != nil {
		support := o.BIOS.Supported()
		data.DedicatedGfx = support.DedicatedGfx
		data.PostSound = support.PostSound
	}
	return data
}
