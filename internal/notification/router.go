package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/metrics"
)

// Record is a decoded data record offered for notification.
type Record interface {
	// Identity is a stable string naming the record.
	Identity() string
	// Attributes derives the attribute map matched against constraint groups.
	Attributes() (map[string]string, error)
}

// MapRecord is a Record whose attributes are already known.
type MapRecord struct {
	ID    string            `json:"id"`
	Attrs map[string]string `json:"attributes"`
}

func (r MapRecord) Identity() string {
	return r.ID
}

func (r MapRecord) Attributes() (map[string]string, error) {
	if r.Attrs == nil {
		return nil, fmt.Errorf("record %s has no attributes", r.ID)
	}
	return r.Attrs, nil
}

// EndpointRouter buffers matched records for one endpoint and hands them to
// a transport. Process may be called concurrently from many goroutines.
type EndpointRouter interface {
	Process(record Record)
	// SendImmediateData delivers buffered data for endpoints that are not
	// batched. Batched endpoints keep their data for SendQueuedData.
	SendImmediateData() error
	// SendQueuedData delivers everything still buffered.
	SendQueuedData() error
	HasPendingData() bool
	Route() string
}

// Transport delivers an encoded batch to an endpoint.
type Transport interface {
	Deliver(ctx context.Context, rule *Rule, payload []byte) error
	// Supports reports whether endpoints of type t can be delivered.
	Supports(t EndpointType) bool
}

// RouterFactory creates the router for an accepted rule. An error aborts the
// load that asked for it.
type RouterFactory func(rule *Rule) (EndpointRouter, error)

// Delivery modes recorded in metrics.
const (
	modeImmediate = "immediate"
	modeQueued    = "queued"
)

type identifierPayload struct {
	Endpoint    string   `json:"endpoint"`
	Identifiers []string `json:"identifiers"`
}

type recordEntry struct {
	Identity   string            `json:"identity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type recordPayload struct {
	Endpoint string        `json:"endpoint"`
	Records  []recordEntry `json:"records"`
}

// router implements both formats. Only the buffer matching rule.Format is
// ever written.
type router struct {
	rule      *Rule
	transport Transport
	metrics   *metrics.Metrics

	mu          sync.Mutex
	identifiers []string
	records     []recordEntry
}

// NewEndpointRouter returns the router for rule's format.
func NewEndpointRouter(rule *Rule, transport Transport, m *metrics.Metrics) (EndpointRouter, error) {
	if transport == nil {
		return nil, errors.InternalError("no transport for endpoint "+rule.EndpointName, nil)
	}
	switch rule.Format {
	case RawIdentifier, FullRecord:
		return &router{rule: rule, transport: transport, metrics: m}, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("no router for format %q", rule.Format))
	}
}

func (r *router) Route() string {
	return r.rule.EndpointName
}

func (r *router) Process(record Record) {
	switch r.rule.Format {
	case RawIdentifier:
		r.mu.Lock()
		r.identifiers = append(r.identifiers, record.Identity())
		r.mu.Unlock()
	case FullRecord:
		entry := recordEntry{Identity: record.Identity()}
		if attrs, err := record.Attributes(); err == nil {
			entry.Attributes = attrs
		}
		r.mu.Lock()
		r.records = append(r.records, entry)
		r.mu.Unlock()
	}
}

func (r *router) HasPendingData() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identifiers) > 0 || len(r.records) > 0
}

func (r *router) SendImmediateData() error {
	if r.rule.EndpointType.Queued() {
		return nil
	}
	return r.flush(modeImmediate)
}

func (r *router) SendQueuedData() error {
	return r.flush(modeQueued)
}

// flush takes the buffer and delivers it. A batch that fails to deliver is
// dropped.
func (r *router) flush(mode string) error {
	payload, count, err := r.take()
	if err != nil || count == 0 {
		return err
	}

	err = r.transport.Deliver(context.Background(), r.rule, payload)
	r.metrics.RecordDelivery(r.rule.EndpointName, mode, err)
	if err != nil {
		return errors.TransportError(fmt.Sprintf("failed to deliver %d records to %s", count, r.rule.EndpointName), err).
			WithContext("endpoint", r.rule.EndpointName).
			WithContext("endpoint_type", string(r.rule.EndpointType))
	}
	return nil
}

func (r *router) take() ([]byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		v     interface{}
		count int
	)
	switch r.rule.Format {
	case RawIdentifier:
		count = len(r.identifiers)
		v = identifierPayload{Endpoint: r.rule.EndpointName, Identifiers: r.identifiers}
		r.identifiers = nil
	case FullRecord:
		count = len(r.records)
		v = recordPayload{Endpoint: r.rule.EndpointName, Records: r.records}
		r.records = nil
	}
	if count == 0 {
		return nil, 0, nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, count, errors.InternalError("failed to encode notification payload", err)
	}
	return payload, count, nil
}
