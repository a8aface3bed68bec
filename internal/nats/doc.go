// Package nats exposes the controllers over embedded NATS messaging, next to
// the HTTP API.
//
// # Architecture
//
//   - Server: embedded NATS server running inside the daemon
//   - Bridge: answers command requests and republishes bus notifications
//   - Client: used by the watch subcommand and by local tools
//
// # Subject Hierarchy
//
//	rogd.cmd.led.effect          # request: codec.Effect JSON
//	rogd.cmd.led.brightness      # request: {"level": 0-3}
//	rogd.cmd.led.brightness.step # request: {"delta": ±n}
//	rogd.cmd.led.mode.step       # request: {"delta": ±n}
//	rogd.cmd.anime.image         # request: {"panes": [base64, base64]}
//	rogd.cmd.anime.set           # request: empty
//	rogd.cmd.anime.apply         # request: empty
//	rogd.cmd.fan.level           # request: {"level": "normal|boost|silent"}
//	rogd.cmd.charge.limit        # request: {"limit": 20-100}
//	rogd.cmd.bios.gfx            # request: {"dedicated": bool}
//	rogd.cmd.bios.post_sound     # request: {"enabled": bool}
//	rogd.notify.{kind}           # notification JSON, see events package
//
// Every request is answered with a Reply. Notifications are fire-and-forget
// (core NATS, no JetStream).
//
// # Debugging with nats CLI
//
//	nats sub "rogd.notify.>"
//	nats req rogd.cmd.led.brightness '{"level":3}'
//	nats req rogd.cmd.fan.level '{"level":"silent"}'
package nats
