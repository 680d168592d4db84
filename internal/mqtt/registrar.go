package mqtt

import (
	"context"
	"fmt"

	"github.com/Veraticus/whereabouts/internal/model"
)

// Registrar submits region commands to the host by publishing them.
// A successful publish means the broker accepted the command; the host
// answers later on the status topic.
type Registrar struct {
	transport Transport
	topics    Topics
	qos       byte
}

// NewRegistrar creates a Registrar.
func NewRegistrar(transport Transport, topics Topics, qos byte) *Registrar {
	return &Registrar{transport: transport, topics: topics, qos: qos}
}

// AddRegions publishes a registration for requests.
func (r *Registrar) AddRegions(ctx context.Context, requests []model.RegionRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeRegister(requests)
	if err != nil {
		return fmt.Errorf("failed to encode regions: %w", err)
	}
	return r.transport.Publish(r.topics.Register, r.qos, false, payload)
}

// RemoveRegions publishes a removal for ids.
func (r *Registrar) RemoveRegions(ctx context.Context, ids []string) error {
	return r.remove(ctx, ids, false)
}

// RemoveAllRegions publishes a removal of every region.
func (r *Registrar) RemoveAllRegions(ctx context.Context) error {
	return r.remove(ctx, nil, true)
}

func (r *Registrar) remove(ctx context.Context, ids []string, all bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeRemove(ids, all)
	if err != nil {
		return fmt.Errorf("failed to encode removal: %w", err)
	}
	return r.transport.Publish(r.topics.Remove, r.qos, false, payload)
}
