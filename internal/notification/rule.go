// Package notification dispatches decoded records to consumer endpoints.
//
// Rules are loaded from <root>/notification/*.xml. A rule without constraint
// groups receives every record; the others are indexed in a decision tree by
// the attribute values they require. The Notifier holds one immutable
// generation of rules, routers and tree, guarded by a read-write lock, and
// replaces it wholesale on reload.
package notification

import (
	"strings"
	"time"
)

// DefaultTimeToLiveMs applies when a rule omits timeToLiveMs or gives a
// negative value for a QUEUE or TOPIC endpoint.
const DefaultTimeToLiveMs = 300_000

// EndpointType selects how an endpoint's data is delivered.
type EndpointType string

const (
	Direct    EndpointType = "DIRECT"
	Queue     EndpointType = "QUEUE"
	Topic     EndpointType = "TOPIC"
	Broadcast EndpointType = "BROADCAST"
)

// EndpointTypes lists every valid endpoint type.
var EndpointTypes = []EndpointType{Direct, Queue, Topic, Broadcast}

// Valid reports whether t is a known endpoint type.
func (t EndpointType) Valid() bool {
	switch t {
	case Direct, Queue, Topic, Broadcast:
		return true
	}
	return false
}

// Queued reports whether data for this type is held until SendQueuedData.
func (t EndpointType) Queued() bool {
	return t == Queue || t == Topic
}

// Format selects what a router buffers for each record.
type Format string

const (
	// RawIdentifier sends record identity strings.
	RawIdentifier Format = "RAW_IDENTIFIER"
	// FullRecord sends identities together with attribute maps.
	FullRecord Format = "FULL_RECORD"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == RawIdentifier || f == FullRecord
}

// Rule is one consumer's endpoint and the attribute constraints that select
// its records. ConstraintGroups are OR'd; the pairs inside a group are AND'd.
type Rule struct {
	EndpointName     string              `json:"endpointName"`
	EndpointType     EndpointType        `json:"endpointType"`
	Format           Format              `json:"format"`
	ConstraintGroups []map[string]string `json:"constraintGroups,omitempty"`
	Durable          bool                `json:"durable"`
	TimeToLiveMs     int                 `json:"timeToLiveMs"`
	Source           string              `json:"source"`
}

// ReceiveAll reports whether the rule matches every record: it has no
// constraint groups, or a single empty one.
func (r *Rule) ReceiveAll() bool {
	return len(r.ConstraintGroups) == 0 ||
		(len(r.ConstraintGroups) == 1 && len(r.ConstraintGroups[0]) == 0)
}

// TimeToLive returns the message expiry for queued endpoints. Zero means
// messages never expire.
func (r *Rule) TimeToLive() time.Duration {
	if !r.EndpointType.Queued() || r.TimeToLiveMs <= 0 {
		return 0
	}
	return time.Duration(r.TimeToLiveMs) * time.Millisecond
}

func validCombinations() string {
	return "valid endpointType values for " + string(FullRecord) + " format are " +
		joinTypes(Direct, Broadcast) + "; valid values for " + string(RawIdentifier) +
		" format are " + joinTypes(EndpointTypes...)
}

func joinTypes(types ...EndpointType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
