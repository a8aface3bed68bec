package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/rogd/internal/api/models"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/ctrl"
)

// registerLEDRoutes registers keyboard LED endpoints
func (s *Server) registerLEDRoutes() {
	led := s.options.KbdLED
	if led == nil {
		s.logger.Debug("Keyboard LED not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led",
		Method:      http.MethodGet,
		Path:        "/api/led",
		Summary:     "Get Keyboard LED",
		Description: "Get the current keyboard LED mode, its saved parameters and brightness",
		Tags:        []string{"led"},
	}, func(ctx context.Context, input *struct{}) (*models.LEDResponse, error) {
		return &models.LEDResponse{Body: ledData(led.State())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-led-effect",
		Method:      http.MethodPost,
		Path:        "/api/led/effect",
		Summary:     "Set LED Effect",
		Description: "Apply a keyboard LED effect. Per-key effects carry pre-built rows and are not saved.",
		Tags:        []string{"led"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, input *models.EffectRequest) (*struct{}, error) {
		effect, err := effectFromData(input.Body)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid effect", err)
		}
		if err := led.Submit(ctx, ctrl.SetEffect{Effect: effect}); err != nil {
			return nil, commandError("Failed to set LED effect", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-led-brightness",
		Method:      http.MethodPost,
		Path:        "/api/led/brightness",
		Summary:     "Set LED Brightness",
		Tags:        []string{"led"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, input *models.BrightnessRequest) (*struct{}, error) {
		if err := led.Submit(ctx, ctrl.SetBrightness{Level: input.Body.Level}); err != nil {
			return nil, commandError("Failed to set brightness", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "step-led-brightness",
		Method:      http.MethodPost,
		Path:        "/api/led/brightness/step",
		Summary:     "Step LED Brightness",
		Tags:        []string{"led"},
		Errors:      []int{500, 503},
	}, func(ctx context.Context, input *models.StepRequest) (*struct{}, error) {
		if err := led.Submit(ctx, ctrl.StepBrightness{Delta: input.Body.Delta}); err != nil {
			return nil, commandError("Failed to step brightness", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "step-led-mode",
		Method:      http.MethodPost,
		Path:        "/api/led/mode/step",
		Summary:     "Step LED Mode",
		Description: "Cycle through the supported modes using their saved parameters",
		Tags:        []string{"led"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, input *models.StepRequest) (*struct{}, error) {
		if err := led.Submit(ctx, ctrl.StepMode{Delta: input.Body.Delta}); err != nil {
			return nil, commandError("Failed to step mode", err)
		}
		return &struct{}{}, nil
	})

	s.logger.Debug("LED routes registered")
}

func ledData(state ctrl.LEDState) models.LEDData {
	supported := make([]string, len(state.Supported))
	for i, m := range state.Supported {
		supported[i] = m.String()
	}
	return models.LEDData{
		Mode:       state.Mode.String(),
		Effect:     effectToData(state.Effect),
		Brightness: state.Brightness,
		Supported:  supported,
	}
}

func effectFromData(d models.EffectData) (codec.Effect, error) {
	mode, err := codec.ParseMode(d.Mode)
	if err != nil {
		return codec.Effect{}, err
	}
	e := codec.Effect{Mode: mode, Rows: d.Rows}

	if d.Colour1 != "" {
		e.Colour1 = new(codec.Colour)
		if err := e.Colour1.UnmarshalText([]byte(d.Colour1)); err != nil {
			return codec.Effect{}, err
		}
	}
	if d.Colour2 != "" {
		e.Colour2 = new(codec.Colour)
		if err := e.Colour2.UnmarshalText([]byte(d.Colour2)); err != nil {
			return codec.Effect{}, err
		}
	}
	if d.Speed != "" {
		e.Speed = new(codec.Speed)
		if err := e.Speed.UnmarshalText([]byte(d.Speed)); err != nil {
			return codec.Effect{}, err
		}
	}
	if d.Direction != "" {
		e.Direction = new(codec.Direction)
		if err := e.Direction.UnmarshalText([]byte(d.Direction)); err != nil {
			return codec.Effect{}, err
		}
	}
	for i, z := range d.Zones {
		var c codec.Colour
		if err := c.UnmarshalText([]byte(z)); err != nil {
			return codec.Effect{}, fmt.Errorf("zone %d: %w", i+1, err)
		}
		e.Zones = append(e.Zones, c)
	}
	return e, nil
}

func effectToData(e codec.Effect) models.EffectData {
	d := models.EffectData{Mode: e.Mode.String()}
	if e.Colour1 != nil {
		d.Colour1 = colourString(*e.Colour1)
	}
	if e.Colour2 != nil {
		d.Colour2 = colourString(*e.Colour2)
	}
	if e.Speed != nil {
		d.Speed = e.Speed.String()
	}
	if e.Direction != nil {
		d.Direction = e.Direction.String()
	}
	for _, z := range e.Zones {
		d.Zones = append(d.Zones, colourString(z))
	}
	return d
}

func colourString(c codec.Colour) string {
	text, _ := c.MarshalText()
	return string(text)
}
