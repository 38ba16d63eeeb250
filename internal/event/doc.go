/*
Package event is the hook bus between the compiler, the reporter and the dev
server.

Every build invocation owns one Bus. The compiler publishes on it; the
reporter and the dev server subscribe. Nothing is shared between invocations.

# Event Types

Compile Events:
  - compile.invalid: sources changed, a rebuild is starting
  - compile.done: a compilation finished (it may still carry errors)
  - compile.failed: the compiler could not run at all

File Events:
  - file.changed: a watched file changed

Dev Server Events:
  - devserver.listening: the server accepted its listener
  - devserver.closed: the server shut down

# Basic Usage

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.CompileDone, func(e event.Event) {
		data := e.Data.(event.CompileDoneData)
		log.Info().Dur("duration", data.Duration).Msg("compiled")
	})
	defer unsubscribe()

	bus.PublishSync(event.Event{Type: event.CompileDone, Data: event.CompileDoneData{BuildID: id}})

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. Subscribers must complete quickly and must never publish from
within a subscriber.

# Streaming

Every published event is also forwarded, JSON-encoded, to the watermill
GoChannel under Topic. Consumers that need a channel rather than a callback,
such as the dev server's event stream, use Stream:

	msgs, err := bus.Stream(ctx)
	for msg := range msgs {
		forward(msg.Payload)
		msg.Ack()
	}
*/
package event
