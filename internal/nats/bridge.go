package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/ctrl"
	"github.com/smazurov/rogd/internal/events"
)

// CommandTimeout bounds how long a request waits for its controller.
// Graphics switching regenerates the initramfs and can take a while.
const CommandTimeout = 2 * time.Minute

// LEDSubmitter accepts keyboard LED commands.
type LEDSubmitter interface {
	Submit(ctx context.Context, cmd ctrl.LEDCommand) error
}

// AnimeSubmitter accepts AniMe matrix commands.
type AnimeSubmitter interface {
	Submit(ctx context.Context, cmd ctrl.AnimeCommand) error
}

// FanSubmitter accepts fan/CPU commands.
type FanSubmitter interface {
	Submit(ctx context.Context, cmd ctrl.FanCommand) error
}

// ChargeSubmitter accepts charge limit commands.
type ChargeSubmitter interface {
	Submit(ctx context.Context, cmd ctrl.ChargeCommand) error
}

// BIOSSubmitter accepts BIOS setting commands.
type BIOSSubmitter interface {
	Submit(ctx context.Context, cmd ctrl.BIOSCommand) error
}

// Controllers are the command targets. Nil entries get no subjects.
type Controllers struct {
	KbdLED LEDSubmitter
	Anime  AnimeSubmitter
	Fan    FanSubmitter
	Charge ChargeSubmitter
	BIOS   BIOSSubmitter
}

// Bridge answers command requests from NATS and republishes event bus
// notifications to NATS.
type Bridge struct {
	url         string
	eventBus    *events.Bus
	controllers Controllers
	timeout     time.Duration
	conn        *nats.Conn
	subs        []*nats.Subscription
	unsubs      []func()
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewBridge creates a new NATS bridge.
func NewBridge(url string, eventBus *events.Bus, controllers Controllers, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:         url,
		eventBus:    eventBus,
		controllers: controllers,
		timeout:     CommandTimeout,
		logger:      logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS, subscribes the command subjects and starts
// forwarding notifications.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("rogd-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	for subject, fn := range b.commandHandlers() {
		sub, err := conn.Subscribe(subject, b.respond(fn))
		if err != nil {
			b.cleanup()
			return err
		}
		b.subs = append(b.subs, sub)
	}

	if b.eventBus != nil {
		b.unsubs = append(b.unsubs,
			b.eventBus.Subscribe(func(e events.LEDModeChangedEvent) { b.publish(NotifyLEDMode, e) }),
			b.eventBus.Subscribe(func(e events.BrightnessChangedEvent) { b.publish(NotifyBrightness, e) }),
			b.eventBus.Subscribe(func(e events.FanLevelChangedEvent) { b.publish(NotifyFanLevel, e) }),
			b.eventBus.Subscribe(func(e events.ChargeLimitChangedEvent) { b.publish(NotifyChargeLimit, e) }),
			b.eventBus.Subscribe(func(e events.GfxModeChangedEvent) { b.publish(NotifyGfxMode, e) }),
			b.eventBus.Subscribe(func(e events.PostSoundChangedEvent) { b.publish(NotifyPostSound, e) }),
		)
	}

	if err := conn.Flush(); err != nil {
		b.cleanup()
		return err
	}

	b.logger.Info("NATS bridge subscribed to command subjects", "subjects", len(b.subs))
	return nil
}

type commandFunc func(ctx context.Context, data []byte) error

// commandHandlers maps each command subject to its decoder and controller.
func (b *Bridge) commandHandlers() map[string]commandFunc {
	handlers := make(map[string]commandFunc)
	c := b.controllers

	if c.KbdLED != nil {
		led := c.KbdLED
		handlers[SubjectLEDEffect] = func(ctx context.Context, data []byte) error {
			var e codec.Effect
			if err := decode(data, &e); err != nil {
				return err
			}
			return led.Submit(ctx, ctrl.SetEffect{Effect: e})
		}
		handlers[SubjectLEDBrightness] = func(ctx context.Context, data []byte) error {
			var m LevelMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return led.Submit(ctx, ctrl.SetBrightness{Level: m.Level})
		}
		handlers[SubjectLEDBrightnessStep] = func(ctx context.Context, data []byte) error {
			var m StepMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return led.Submit(ctx, ctrl.StepBrightness{Delta: m.Delta})
		}
		handlers[SubjectLEDModeStep] = func(ctx context.Context, data []byte) error {
			var m StepMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return led.Submit(ctx, ctrl.StepMode{Delta: m.Delta})
		}
	}

	if c.Anime != nil {
		anime := c.Anime
		handlers[SubjectAnimeImage] = func(ctx context.Context, data []byte) error {
			var m ImageMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return anime.Submit(ctx, ctrl.WriteImage{Panes: m.Panes})
		}
		handlers[SubjectAnimeSet] = func(ctx context.Context, _ []byte) error {
			return anime.Submit(ctx, ctrl.AnimeSet{})
		}
		handlers[SubjectAnimeApply] = func(ctx context.Context, _ []byte) error {
			return anime.Submit(ctx, ctrl.AnimeApply{})
		}
	}

	if c.Fan != nil {
		fan := c.Fan
		handlers[SubjectFanLevel] = func(ctx context.Context, data []byte) error {
			var m FanMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			level, err := codec.ParseFanLevelName(m.Level)
			if err != nil {
				return err
			}
			return fan.Submit(ctx, ctrl.SetFanLevel{Level: level})
		}
	}

	if c.Charge != nil {
		charge := c.Charge
		handlers[SubjectChargeLimit] = func(ctx context.Context, data []byte) error {
			var m ChargeMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return charge.Submit(ctx, ctrl.SetChargeLimit{Limit: m.Limit})
		}
	}

	if c.BIOS != nil {
		bios := c.BIOS
		handlers[SubjectBIOSGfx] = func(ctx context.Context, data []byte) error {
			var m GfxMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return bios.Submit(ctx, ctrl.SetDedicatedGfx{Dedicated: m.Dedicated})
		}
		handlers[SubjectBIOSPostSound] = func(ctx context.Context, data []byte) error {
			var m PostSoundMessage
			if err := decode(data, &m); err != nil {
				return err
			}
			return bios.Submit(ctx, ctrl.SetPostSound{Enabled: m.Enabled})
		}
	}

	return handlers
}

// respond runs fn for a request and answers with a Reply.
func (b *Bridge) respond(fn commandFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		reply := Reply{OK: true}
		if err := fn(ctx, msg.Data); err != nil {
			b.logger.Warn("NATS command failed", "subject", msg.Subject, "error", err)
			reply = Reply{Error: err.Error()}
		}

		if msg.Reply == "" {
			return
		}
		data, err := reply.Marshal()
		if err != nil {
			b.logger.Warn("Failed to marshal reply", "error", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			b.logger.Warn("Failed to send reply", "subject", msg.Subject, "error", err)
		}
	}
}

// publish forwards one notification. Failures are logged only.
func (b *Bridge) publish(kind string, ev any) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to marshal notification", "kind", kind, "error", err)
		return
	}
	if err := conn.Publish(SubjectNotify(kind), data); err != nil {
		b.logger.Warn("Failed to publish notification", "kind", kind, "error", err)
		return
	}
	b.logger.Debug("Published notification", "kind", kind)
}

// cleanup unsubscribes from NATS and closes connection.
func (b *Bridge) cleanup() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	// Bus handlers take b.mu in publish, so drop them before locking.
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanup()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
