package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
)

// MockService is an in-memory Service that records sent messages. Used by
// tests across packages instead of a real transport.
type MockService struct {
	mu        sync.Mutex
	sent      []SentMessage
	sendErr   error
	failures  int
	receipts  chan models.Receipt
	responses chan models.Response
}

// SentMessage records one SendMessage call on a MockService.
type SentMessage struct {
	To   string
	Body string
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// FailWith makes subsequent sends return err (nil restores success).
func (m *MockService) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// FailNTimes makes the next n sends return err, then succeed.
func (m *MockService) FailNTimes(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.sendErr = err
}

// Sent returns a copy of all recorded messages.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneDigits(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		if m.failures > 0 {
			m.failures--
			if m.failures == 0 {
				err := m.sendErr
				m.sendErr = nil
				return err
			}
		}
		return m.sendErr
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }
func (m *MockService) Stop() error                     { return nil }

func (m *MockService) Receipts() <-chan models.Receipt   { return m.receipts }
func (m *MockService) Responses() <-chan models.Response { return m.responses }

// Inject feeds an inbound message into the Responses channel.
func (m *MockService) Inject(from, body string) {
	m.responses <- models.Response{From: from, Body: body, Time: time.Now().Unix()}
}
