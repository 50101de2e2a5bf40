package handlers

import (
	"github.com/stretchr/testify/mock"

	"ingest-router/internal/brokers"
	"ingest-router/internal/circuitbreaker"
	"ingest-router/internal/distribution"
	"ingest-router/internal/notification"
	"ingest-router/internal/reload"
)

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(msg *distribution.Message) distribution.RouteResult {
	args := m.Called(msg)
	if msg.Properties == nil {
		msg.Properties = map[string]string{}
	}
	msg.Properties[distribution.PropertyPluginName] = "radar"
	return args.Get(0).(distribution.RouteResult)
}

func (m *MockRouter) Registrations() [][2]string {
	return m.Called().Get(0).([][2]string)
}

type staticPatterns struct {
	plugins []*distribution.PatternSet
	missing []string
}

func (s staticPatterns) Plugins() []*distribution.PatternSet { return s.plugins }
func (s staticPatterns) MissingPatterns() []string           { return s.missing }

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRoutes(records ...notification.Record) int {
	return m.Called(records).Int(0)
}

func (m *MockNotifier) SendQueuedNotifications() {
	m.Called()
}

func (m *MockNotifier) Endpoints() []notification.Rule {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]notification.Rule)
}

func (m *MockNotifier) Rejections() []notification.Rejection {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]notification.Rejection)
}

func (m *MockNotifier) Match(record notification.Record) ([]string, error) {
	args := m.Called(record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type staticReloader reload.Result

func (s staticReloader) ReloadAll() reload.Result { return reload.Result(s) }

type staticBreakers []circuitbreaker.Stats

func (s staticBreakers) Breakers() []circuitbreaker.Stats { return s }

type staticHealth map[string]error

func (s staticHealth) Health() map[string]error { return s }

func (s staticHealth) Info() map[string]brokers.BrokerInfo {
	info := make(map[string]brokers.BrokerInfo, len(s))
	for name := range s {
		info[name] = brokers.BrokerInfo{Name: name, Type: name, URL: name + "://test"}
	}
	return info
}
