package messaging

import "context"

// Broker publishes domain events to a message channel and lets
// consumers subscribe to them.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
