package bridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/wire"
)

// Get reads one JSBSim property between steps.
func (b *Bridge) Get(ctx context.Context, prop string) (float64, error) {
	var v float64
	err := b.exec(ctx, "bridge.get", prop, wire.EncodeGetLine(prop), func(data []byte) error {
		got, err := wire.DecodeGet(prop, data)
		v = got
		return err
	})
	return v, err
}

// Set writes one JSBSim property between steps.
func (b *Bridge) Set(ctx context.Context, prop string, v float64) error {
	return b.exec(ctx, "bridge.set", prop, wire.EncodeSetLine(prop, v), func(data []byte) error {
		return wire.DecodeAck(wire.AckSet, data)
	})
}

// Hold pauses the simulation clock on the peer.
func (b *Bridge) Hold(ctx context.Context) error {
	return b.exec(ctx, "bridge.hold", "", "hold\n", func(data []byte) error {
		return wire.DecodeAck("", data)
	})
}

// Resume restarts the simulation clock after Hold.
func (b *Bridge) Resume(ctx context.Context) error {
	return b.exec(ctx, "bridge.resume", "", "resume\n", func(data []byte) error {
		return wire.DecodeAck(wire.AckResume, data)
	})
}

func (b *Bridge) exec(ctx context.Context, name, prop, req string, decode func([]byte) error) error {
	m := b.machine()
	if m == nil {
		return session.ErrNotStarted
	}
	ctx, span := b.tracer.Start(ctx, name)
	defer span.End()
	if prop != "" {
		span.SetAttributes(attribute.String("jsbsim.property", prop))
	}

	err := m.Exec(ctx, []byte(req), 1, decode)
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
	}
	endSpan(span, err)
	return err
}
