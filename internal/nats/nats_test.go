package nats

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/ctrl"
	"github.com/smazurov/rogd/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recorder stands in for every controller kind.
type recorder[T any] struct {
	mu   sync.Mutex
	cmds []T
	err  error
}

func (r *recorder[T]) Submit(_ context.Context, cmd T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func (r *recorder[T]) last() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if len(r.cmds) == 0 {
		return zero
	}
	return r.cmds[len(r.cmds)-1]
}

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

type bridgeEnv struct {
	bus    *events.Bus
	client *Client
	led    *recorder[ctrl.LEDCommand]
	anime  *recorder[ctrl.AnimeCommand]
	fan    *recorder[ctrl.FanCommand]
	charge *recorder[ctrl.ChargeCommand]
	bios   *recorder[ctrl.BIOSCommand]
}

func startBridge(t *testing.T, withAnime bool) *bridgeEnv {
	t.Helper()
	server := startServer(t)

	env := &bridgeEnv{
		bus:    events.New(),
		led:    &recorder[ctrl.LEDCommand]{},
		anime:  &recorder[ctrl.AnimeCommand]{},
		fan:    &recorder[ctrl.FanCommand]{},
		charge: &recorder[ctrl.ChargeCommand]{},
		bios:   &recorder[ctrl.BIOSCommand]{},
	}
	controllers := Controllers{
		KbdLED: env.led,
		Fan:    env.fan,
		Charge: env.charge,
		BIOS:   env.bios,
	}
	if withAnime {
		controllers.Anime = env.anime
	}

	bridge := NewBridge(server.ClientURL(), env.bus, controllers, testLogger())
	if err := bridge.Start(); err != nil {
		t.Fatalf("Failed to start bridge: %v", err)
	}
	t.Cleanup(bridge.Stop)

	env.client = NewClient(server.ClientURL(), testLogger())
	if err := env.client.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(env.client.Close)

	if n := server.NumClients(); n != 2 {
		t.Errorf("NumClients = %d, want bridge and client", n)
	}
	return env
}

func request(t *testing.T, c *Client, subject string, payload any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Request(ctx, subject, payload)
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(ServerOptions{Port: RandomPort, Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !server.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if !strings.HasPrefix(server.ClientURL(), "nats://") {
		t.Errorf("ClientURL = %q", server.ClientURL())
	}

	server.Stop()
	if server.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

// lockedBuffer is written by the server's goroutines while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServerLogsThroughSlog(t *testing.T) {
	var buf lockedBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	server := NewServer(ServerOptions{Port: RandomPort, Logger: logger})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "Server is ready") {
		if time.Now().After(deadline) {
			t.Fatalf("server notices not logged:\n%s", buf.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(buf.String(), "component=nats-server") {
		t.Errorf("server output missing component attribute:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "level=DEBUG") {
		t.Errorf("debug output at info level:\n%s", buf.String())
	}
}

func TestClientWithoutServer(t *testing.T) {
	client := NewClient("nats://127.0.0.1:59999", testLogger())
	if err := client.Connect(); err == nil {
		t.Error("Connect should fail with non-existent server")
	}
	if client.IsConnected() {
		t.Error("Client should not be connected")
	}
	if err := client.Request(context.Background(), SubjectFanLevel, FanMessage{Level: "boost"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Request error = %v, want ErrNotConnected", err)
	}
	client.Close()
}

func TestBridgeCommands(t *testing.T) {
	env := startBridge(t, true)

	tests := []struct {
		subject string
		payload any
		check   func() bool
	}{
		{SubjectLEDBrightness, LevelMessage{Level: 2}, func() bool {
			return env.led.last() == ctrl.SetBrightness{Level: 2}
		}},
		{SubjectLEDBrightnessStep, StepMessage{Delta: -1}, func() bool {
			return env.led.last() == ctrl.StepBrightness{Delta: -1}
		}},
		{SubjectLEDModeStep, StepMessage{Delta: 1}, func() bool {
			return env.led.last() == ctrl.StepMode{Delta: 1}
		}},
		{SubjectAnimeSet, nil, func() bool {
			_, ok := env.anime.last().(ctrl.AnimeSet)
			return ok
		}},
		{SubjectAnimeApply, nil, func() bool {
			_, ok := env.anime.last().(ctrl.AnimeApply)
			return ok
		}},
		{SubjectFanLevel, FanMessage{Level: "silent"}, func() bool {
			return env.fan.last() == ctrl.SetFanLevel{Level: codec.FanSilent}
		}},
		{SubjectChargeLimit, ChargeMessage{Limit: 60}, func() bool {
			return env.charge.last() == ctrl.SetChargeLimit{Limit: 60}
		}},
		{SubjectBIOSGfx, GfxMessage{Dedicated: true}, func() bool {
			return env.bios.last() == ctrl.SetDedicatedGfx{Dedicated: true}
		}},
		{SubjectBIOSPostSound, PostSoundMessage{Enabled: false}, func() bool {
			return env.bios.last() == ctrl.SetPostSound{Enabled: false}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			if err := request(t, env.client, tt.subject, tt.payload); err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if !tt.check() {
				t.Error("controller did not receive the expected command")
			}
		})
	}
}

func TestBridgeEffect(t *testing.T) {
	env := startBridge(t, false)

	red := codec.Colour{R: 0xff}
	speed := codec.SpeedHigh
	effect := codec.Effect{Mode: codec.ModeBreathe, Colour1: &red, Speed: &speed}
	if err := request(t, env.client, SubjectLEDEffect, effect); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	cmd, ok := env.led.last().(ctrl.SetEffect)
	if !ok {
		t.Fatalf("submitted %T", env.led.last())
	}
	got := cmd.Effect
	if got.Mode != codec.ModeBreathe || got.Colour1 == nil || *got.Colour1 != red || got.Speed == nil || *got.Speed != speed {
		t.Errorf("effect = %+v", got)
	}
}

func TestBridgeAnimeImage(t *testing.T) {
	env := startBridge(t, true)

	pane := make([]byte, codec.AnimePacketSize)
	pane[0] = 0x5e
	if err := request(t, env.client, SubjectAnimeImage, ImageMessage{Panes: [][]byte{pane, pane}}); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	img, ok := env.anime.last().(ctrl.WriteImage)
	if !ok || len(img.Panes) != 2 || img.Panes[1][0] != 0x5e {
		t.Errorf("submitted %#v", env.anime.last())
	}
}

func TestBridgeErrors(t *testing.T) {
	env := startBridge(t, false)
	env.charge.err = ctrl.ErrUnsupported

	tests := []struct {
		name    string
		subject string
		payload any
		want    string
	}{
		{"controller error", SubjectChargeLimit, ChargeMessage{Limit: 80}, "unsupported"},
		{"bad fan level", SubjectFanLevel, FanMessage{Level: "turbo"}, "turbo"},
		{"malformed body", SubjectLEDBrightness, "not an object", "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := request(t, env.client, tt.subject, tt.payload)
			var cmdErr *CommandError
			if !errors.As(err, &cmdErr) {
				t.Fatalf("error = %v, want CommandError", err)
			}
			if cmdErr.Subject != tt.subject || !strings.Contains(cmdErr.Message, tt.want) {
				t.Errorf("error = %v, want message containing %q", cmdErr, tt.want)
			}
		})
	}
}

func TestBridgeSkipsMissingControllers(t *testing.T) {
	env := startBridge(t, false)

	err := request(t, env.client, SubjectAnimeSet, nil)
	if err == nil {
		t.Fatal("request to an absent controller succeeded")
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		t.Errorf("absent controller answered: %v", cmdErr)
	}
}

func TestBridgeForwardsNotifications(t *testing.T) {
	env := startBridge(t, false)

	type note struct {
		kind string
		data string
	}
	received := make(chan note, 10)
	unsub, err := env.client.Notifications(func(kind string, data []byte) {
		received <- note{kind, string(data)}
	})
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	defer unsub()

	if err := env.bus.Publish(events.FanLevelChangedEvent{Level: 2, Name: "silent", Source: events.SourceFirmware}); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-received:
		if n.kind != NotifyFanLevel {
			t.Errorf("kind = %q, want %q", n.kind, NotifyFanLevel)
		}
		if !strings.Contains(n.data, `"name":"silent"`) || !strings.Contains(n.data, `"source":"firmware"`) {
			t.Errorf("unexpected body: %s", n.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for notification")
	}
}
