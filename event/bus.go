package event

import (
	"github.com/asaskevich/EventBus"
	"github.com/sirupsen/logrus"
)

const (
	// TopicPrices carries the model.Snapshot that was just applied.
	TopicPrices = "prices:updated"
	// TopicPriceState carries the name of the price list state after a fetch
	// started or failed. The snapshot itself is unchanged.
	TopicPriceState = "prices:state"
	// TopicSession carries the *model.Session after a change, nil when signed out.
	TopicSession = "session:changed"
)

// Bus fans state changes out to consumers. A nil *Bus drops every event.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) Publish(topic string, args ...interface{}) {
	if b == nil {
		return
	}
	b.bus.Publish(topic, args...)
}

// Subscribe registers fn to run asynchronously; calls to the same fn are serialized.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	if err := b.bus.SubscribeAsync(topic, fn, true); err != nil {
		return err
	}
	logrus.Debugf("Subscribed to topic %s", topic)
	return nil
}

// SubscribeSync registers fn to run on the publisher's goroutine.
func (b *Bus) SubscribeSync(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// Wait blocks until every asynchronous handler has returned.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}
