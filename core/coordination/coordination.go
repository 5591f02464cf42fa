package coordination

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Key layout under the coordination service:
//
//	/experiments/{experimentId}/cancel-listener
//	/experiments/{experimentId}/{processId}/delivery-tag
const (
	ExperimentsPrefix = "/experiments"

	cancelListenerNode = "cancel-listener"
	deliveryTagNode    = "delivery-tag"
)

// CancelMarker is the well-known byte marker written to an
// experiment's cancel-listener node.
var CancelMarker = []byte("CANCEL_REQUEST")

// ErrNodeNotExists is returned when a read targets a node that was
// never created.
var ErrNodeNotExists = errors.New("coordination node does not exist")

// Service is the hierarchical coordination layer tracking cancel
// requests and message delivery tags per experiment/process. Writes
// are unconditional puts: last writer wins, there is no
// compare-and-swap on these nodes.
type Service struct {
	client *clientv3.Client
}

// NewService connects to the coordination cluster
func NewService(endpoints []string) (*Service, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &Service{client: cli}, nil
}

// Close releases the client connection
func (s *Service) Close() error {
	return s.client.Close()
}

// ExperimentPath returns the experiment's node path
func ExperimentPath(experimentID string) string {
	return ExperimentsPrefix + "/" + experimentID
}

// ProcessPath returns the process's node path under its experiment
func ProcessPath(experimentID, processID string) string {
	return ExperimentPath(experimentID) + "/" + processID
}

// CreateExperimentNode creates the experiment node with an empty
// cancel-listener child so cancel requests always have a target.
func (s *Service) CreateExperimentNode(ctx context.Context, experimentID string) error {
	key := ExperimentPath(experimentID) + "/" + cancelListenerNode
	_, err := s.client.Put(ctx, key, "")
	return err
}

// SetExperimentCancelRequest writes the cancel marker to the
// experiment's cancel-listener node. The write is unconditional
// (last-writer-wins) so a concurrent writer is silently overwritten.
func (s *Service) SetExperimentCancelRequest(ctx context.Context, experimentID string) error {
	key := ExperimentPath(experimentID) + "/" + cancelListenerNode
	_, err := s.client.Put(ctx, key, string(CancelMarker))
	return err
}

// IsCancelRequested reports whether the cancel marker is set for the experiment
func (s *Service) IsCancelRequested(ctx context.Context, experimentID string) (bool, error) {
	key := ExperimentPath(experimentID) + "/" + cancelListenerNode
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if len(resp.Kvs) == 0 {
		return false, nil
	}
	return string(resp.Kvs[0].Value) == string(CancelMarker), nil
}

// AckCancelRequest clears the experiment's cancel marker after the
// executing side has honored it. Returns true when a marker was set.
func (s *Service) AckCancelRequest(ctx context.Context, experimentID string) (bool, error) {
	requested, err := s.IsCancelRequested(ctx, experimentID)
	if err != nil {
		return false, err
	}
	if !requested {
		return false, nil
	}
	key := ExperimentPath(experimentID) + "/" + cancelListenerNode
	_, err = s.client.Put(ctx, key, "")
	return true, err
}

// SetProcessDeliveryTag records the message delivery tag under the
// process node, encoded as a raw 8-byte big-endian integer.
func (s *Service) SetProcessDeliveryTag(ctx context.Context, experimentID, processID string, deliveryTag uint64) error {
	key := ProcessPath(experimentID, processID) + "/" + deliveryTagNode
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, deliveryTag)
	_, err := s.client.Put(ctx, key, string(buf))
	return err
}

// GetProcessDeliveryTag reads the process's delivery tag. The node is
// a hard dependency for recovery: a missing node yields
// ErrNodeNotExists, never a zero tag.
func (s *Service) GetProcessDeliveryTag(ctx context.Context, experimentID, processID string) (uint64, error) {
	key := ProcessPath(experimentID, processID) + "/" + deliveryTagNode
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(resp.Kvs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotExists, key)
	}
	val := resp.Kvs[0].Value
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed delivery tag at %s: %d bytes", key, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// DeleteExperimentNode removes the experiment node and all children
// once the experiment reaches a terminal state.
func (s *Service) DeleteExperimentNode(ctx context.Context, experimentID string) error {
	_, err := s.client.Delete(ctx, ExperimentPath(experimentID)+"/", clientv3.WithPrefix())
	return err
}

// WatchCancelRequests converts the coordination watch stream into a
// channel of experiment IDs whose cancel marker was just set.
func (s *Service) WatchCancelRequests(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		watchChan := s.client.Watch(ctx, ExperimentsPrefix+"/", clientv3.WithPrefix())
		for watchResp := range watchChan {
			for _, ev := range watchResp.Events {
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				key := string(ev.Kv.Key)
				if string(ev.Kv.Value) != string(CancelMarker) {
					continue
				}
				// /experiments/{id}/cancel-listener
				rest := key[len(ExperimentsPrefix)+1:]
				for i := 0; i < len(rest); i++ {
					if rest[i] == '/' {
						if rest[i+1:] == cancelListenerNode {
							out <- rest[:i]
						}
						break
					}
				}
			}
		}
	}()
	return out
}
