package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"ingest-router/internal/common/logging"
	"ingest-router/internal/localization"
)

type fixture struct {
	t     *testing.T
	roots []string
	clock time.Time
}

// newFixture creates tiers localization roots, highest priority first.
func newFixture(t *testing.T, tiers int) *fixture {
	t.Helper()
	f := &fixture{t: t, clock: time.Now().Add(-time.Hour)}
	for i := 0; i < tiers; i++ {
		f.roots = append(f.roots, t.TempDir())
	}
	return f
}

// write stores a notification file in root tier with a strictly increasing
// modification time.
func (f *fixture) write(tier int, name, content string) {
	f.t.Helper()
	path := filepath.Join(f.roots[tier], localization.NotificationDir, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	f.clock = f.clock.Add(time.Second)
	require.NoError(f.t, os.Chtimes(path, f.clock, f.clock))
}

func (f *fixture) source() *localization.PathManager {
	f.t.Helper()
	pm, err := localization.NewPathManager(f.roots...)
	require.NoError(f.t, err)
	return pm
}

func (f *fixture) notifier(transport Transport, opts ...Option) (*Notifier, *observer.ObservedLogs) {
	f.t.Helper()
	logger, logs := logging.NewObservedLogger(logging.DebugLevel)
	n, err := NewNotifier(f.source(), transport, logger, nil, opts...)
	require.NoError(f.t, err)
	return n, logs
}

func rules(body string) string {
	return "<notificationRules>" + body + "</notificationRules>"
}

func rule(name, endpointType, format, extra string) string {
	return fmt.Sprintf("<rule><endpointName>%s</endpointName><endpointType>%s</endpointType><format>%s</format>%s</rule>",
		name, endpointType, format, extra)
}

func groups(gs ...map[string]string) string {
	out := "<metadataConstraintGroups>"
	for _, g := range gs {
		out += "<group>"
		for k, v := range g {
			out += fmt.Sprintf(`<constraint attribute="%s" value="%s"/>`, k, v)
		}
		out += "</group>"
	}
	return out + "</metadataConstraintGroups>"
}

type delivery struct {
	Endpoint    string        `json:"endpoint"`
	Identifiers []string      `json:"identifiers"`
	Records     []recordEntry `json:"records"`
	rule        Rule
}

// recordingTransport keeps every delivered batch in memory.
type recordingTransport struct {
	mu          sync.Mutex
	deliveries  []delivery
	fail        map[string]error
	unsupported map[EndpointType]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		fail:        make(map[string]error),
		unsupported: make(map[EndpointType]bool),
	}
}

func (r *recordingTransport) Deliver(_ context.Context, rule *Rule, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail[rule.EndpointName]; err != nil {
		return err
	}
	var d delivery
	if err := json.Unmarshal(payload, &d); err != nil {
		return err
	}
	d.rule = *rule
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingTransport) Supports(t EndpointType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unsupported[t]
}

func (r *recordingTransport) failEndpoint(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[name] = err
}

// received returns every identity delivered to endpoint, in delivery order.
func (r *recordingTransport) received(endpoint string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, d := range r.deliveries {
		if d.Endpoint != endpoint {
			continue
		}
		out = append(out, d.Identifiers...)
		for _, rec := range d.Records {
			out = append(out, rec.Identity)
		}
	}
	return out
}

func (r *recordingTransport) batches(endpoint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range r.deliveries {
		if d.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

func record(id string, attrs map[string]string) MapRecord {
	return MapRecord{ID: id, Attrs: attrs}
}

func endpointNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.EndpointName
	}
	return names
}

func fileNamed(name string) localization.File {
	return localization.File{Name: name, Path: "/config/notification/" + name}
}
