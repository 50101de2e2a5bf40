package rabbitmq_test

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"ingest-router/internal/brokers/rabbitmq"
)

// MockConnectionPool implements ConnectionPoolInterface for testing
type MockConnectionPool struct {
	clients        []*MockClient
	closed         bool
	newClientError error
	template       func(*MockClient)
	mu             sync.Mutex
}

func NewMockConnectionPool() *MockConnectionPool {
	return &MockConnectionPool{}
}

func (m *MockConnectionPool) NewClient() (rabbitmq.ClientInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("connection pool is closed")
	}
	if m.newClientError != nil {
		return nil, m.newClientError
	}

	client := &MockClient{}
	if m.template != nil {
		m.template(client)
	}
	m.clients = append(m.clients, client)
	return client, nil
}

func (m *MockConnectionPool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockConnectionPool) SetNewClientError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newClientError = err
}

// Configure applies fn to every client created after the call
func (m *MockConnectionPool) Configure(fn func(*MockClient)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.template = fn
}

func (m *MockConnectionPool) GetClients() []*MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockClient(nil), m.clients...)
}

// MockClient implements ClientInterface for testing
type MockClient struct {
	closed               bool
	publishError         error
	queueDeclareError    error
	exchangeDeclareError error

	publishedMessages []PublishedMessage
	declaredQueues    []DeclaredQueue
	declaredExchanges []DeclaredExchange
	mu                sync.Mutex
}

type PublishedMessage struct {
	Exchange   string
	RoutingKey string
	Publishing amqp.Publishing
}

type DeclaredQueue struct {
	Name    string
	Durable bool
}

type DeclaredExchange struct {
	Name    string
	Kind    string
	Durable bool
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockClient) Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("client is closed")
	}
	if m.publishError != nil {
		return m.publishError
	}

	m.publishedMessages = append(m.publishedMessages, PublishedMessage{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Publishing: msg,
	})
	return nil
}

func (m *MockClient) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queueDeclareError != nil {
		return amqp.Queue{}, m.queueDeclareError
	}
	m.declaredQueues = append(m.declaredQueues, DeclaredQueue{Name: name, Durable: durable})
	return amqp.Queue{Name: name}, nil
}

func (m *MockClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exchangeDeclareError != nil {
		return m.exchangeDeclareError
	}
	m.declaredExchanges = append(m.declaredExchanges, DeclaredExchange{Name: name, Kind: kind, Durable: durable})
	return nil
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockClient) GetPublishedMessages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.publishedMessages...)
}

func (m *MockClient) GetDeclaredQueues() []DeclaredQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeclaredQueue(nil), m.declaredQueues...)
}

func (m *MockClient) GetDeclaredExchanges() []DeclaredExchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeclaredExchange(nil), m.declaredExchanges...)
}
