package events

import (
	"context"
	"errors"
)

var ErrQueueFull = errors.New("websocket broadcast queue full")

// Broadcaster is satisfied by *ws.Hub
type Broadcaster interface {
	Publish(message []byte) bool
}

// HubPublisher pushes events to connected dashboard clients
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, evt Event) error {
	msg, err := evt.Encode()
	if err != nil {
		return err
	}
	if !p.hub.Publish(msg) {
		return ErrQueueFull
	}
	return nil
}
