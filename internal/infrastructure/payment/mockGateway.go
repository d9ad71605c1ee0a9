package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MockGateway is an in-memory CheckoutGateway holding a ledger of sessions.
// Tests flip a session to paid with MarkPaid and inject failures through
// FailCreate/FailRetrieve.
type MockGateway struct {
	mu       sync.RWMutex
	sessions map[string]*SessionResult
	seq      int

	Requests     []CheckoutRequest
	FailCreate   error
	FailRetrieve error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]*SessionResult)}
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if g.FailCreate != nil {
		return nil, &GatewayError{Op: "create checkout session", Err: g.FailCreate}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	g.seq++
	id := fmt.Sprintf("cs_test_%06d", g.seq)
	g.sessions[id] = &SessionResult{
		ID:            id,
		PaymentStatus: "unpaid",
		Metadata:      map[string]string{MetadataTokenKey: req.CorrelationToken},
	}

	return &CheckoutSession{
		ID:          id,
		RedirectURL: "https://checkout.example.com/pay/" + id,
	}, nil
}

func (g *MockGateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*SessionResult, error) {
	if g.FailRetrieve != nil {
		return nil, &GatewayError{Op: "retrieve checkout session", Err: g.FailRetrieve}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, &GatewayError{Op: "retrieve checkout session", Err: errors.New("no such session")}
	}

	cp := *sess
	cp.Metadata = make(map[string]string, len(sess.Metadata))
	for k, v := range sess.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

// MarkPaid flips a session's payment status to paid, as the hosted checkout
// flow would after a successful card charge.
func (g *MockGateway) MarkPaid(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sess, ok := g.sessions[sessionID]; ok {
		sess.PaymentStatus = SessionPaid
	}
}

// SetMetadata overrides a session metadata entry; used to exercise the
// token-mismatch path.
func (g *MockGateway) SetMetadata(sessionID, key, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sess, ok := g.sessions[sessionID]; ok {
		sess.Metadata[key] = value
	}
}
