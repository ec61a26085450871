package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/agri_node/internal/delivery"
	"github.com/relabs-tech/agri_node/internal/telemetry"
)

// Deliverer sends one encoded payload. *delivery.Client satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, target delivery.Target, entityID string, payload []byte) (delivery.Outcome, error)
}

// Uplink pushes a finished cycle to the remote endpoint.
type Uplink interface {
	Send(ctx context.Context, c Cycle) (Report, error)
}

// FlatUplink posts a single flat document per cycle.
type FlatUplink struct {
	Client Deliverer
	Target delivery.Target
	NodeID string
}

func (u FlatUplink) Send(ctx context.Context, c Cycle) (Report, error) {
	body, err := telemetry.EncodeFlat(telemetry.Flat(c.Snapshot(u.NodeID)))
	if err != nil {
		return Report{}, fmt.Errorf("encode report: %w", err)
	}
	out, err := u.Client.Deliver(ctx, u.Target, u.NodeID, body)
	rep := Report{Requests: 1, Attempts: out.Attempts}
	if out.Delivered {
		rep.Delivered++
	} else {
		rep.Failed++
	}
	return rep, err
}

// EntityUplink sends one attribute update per sensor entity, in order.
type EntityUplink struct {
	Client Deliverer
	Target delivery.Target
}

func (u EntityUplink) Send(ctx context.Context, c Cycle) (Report, error) {
	var (
		rep  Report
		errs []error
	)
	for _, up := range telemetry.Updates(c.Snapshot("")) {
		body, err := up.Encode()
		if err != nil {
			return rep, fmt.Errorf("encode %s: %w", up.EntityID, err)
		}
		out, err := u.Client.Deliver(ctx, u.Target, up.EntityID, body)
		rep.Requests++
		rep.Attempts += out.Attempts
		if out.Delivered {
			rep.Delivered++
		} else {
			rep.Failed++
		}
		if err != nil {
			if ctx.Err() != nil {
				return rep, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", up.EntityID, err))
		}
	}
	return rep, errors.Join(errs...)
}
