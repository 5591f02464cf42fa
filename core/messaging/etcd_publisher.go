package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const eventsPrefix = "/events"

// EtcdPublisher publishes status-change events as documents under
// /events/{gateway}/{type}/{messageId}. Consumers follow the stream
// with a prefix watch; keys carry a TTL lease so the event log does
// not grow without bound.
type EtcdPublisher struct {
	client *clientv3.Client
	ttl    int64
}

// NewEtcdPublisher connects a publisher to the coordination cluster
func NewEtcdPublisher(endpoints []string, ttlSeconds int64) (*EtcdPublisher, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &EtcdPublisher{client: cli, ttl: ttlSeconds}, nil
}

// Close releases the client connection
func (p *EtcdPublisher) Close() error {
	return p.client.Close()
}

// Publish writes the event document. Delivery is at-least-once; the
// caller has already persisted the status this event announces.
func (p *EtcdPublisher) Publish(msg MessageContext) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lease, err := p.client.Grant(ctx, p.ttl)
	if err != nil {
		return err
	}
	key := eventsPrefix + "/" + msg.GatewayID + "/" + string(msg.Type) + "/" + msg.MessageID
	_, err = p.client.Put(ctx, key, string(payload), clientv3.WithLease(lease.ID))
	return err
}

// Watch converts the event stream for a gateway into a channel of
// MessageContext values.
func (p *EtcdPublisher) Watch(ctx context.Context, gatewayID string) <-chan MessageContext {
	out := make(chan MessageContext)
	go func() {
		defer close(out)
		watchChan := p.client.Watch(ctx, eventsPrefix+"/"+gatewayID+"/", clientv3.WithPrefix())
		for watchResp := range watchChan {
			for _, ev := range watchResp.Events {
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				var msg MessageContext
				if err := json.Unmarshal(ev.Kv.Value, &msg); err != nil {
					log.Printf("Failed to unmarshal event at %s: %v", ev.Kv.Key, err)
					continue
				}
				out <- msg
			}
		}
	}()
	return out
}

// LogPublisher logs events instead of delivering them. Used when no
// coordination cluster is configured.
type LogPublisher struct{}

// Publish logs the event
func (LogPublisher) Publish(msg MessageContext) error {
	log.Printf("Event %s (%s): %+v", msg.MessageID, msg.Type, msg.Event)
	return nil
}
