package bus

import "errors"

var ErrClosed = errors.New("bus is closed")

type (
	// Handler receives the raw payload of a message
	Handler func(data []byte)

	Subscription interface {
		Unsubscribe() error
	}

	// Publisher sends a payload to a named channel.
	// Delivery is best effort, there is no acknowledgement.
	Publisher interface {
		Publish(channel string, data []byte) error
	}

	Subscriber interface {
		Subscribe(channel string, h Handler) (Subscription, error)
	}

	// Bus is shared by all producers of a channel. Consumers must cope with
	// duplicate and interleaved messages.
	Bus interface {
		Publisher
		Subscriber
		Close()
	}
)
