package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"paylink/internal/domain"
	"paylink/internal/infrastructure/payment"
	"paylink/internal/repo"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Each sweep pass transitions at most this many links; anything left over is
// picked up by the next pass.
const sweepBatchLimit = 500

type View string

const (
	ViewPaymentForm View = "payment_form"
	ViewPaid        View = "paid"
	ViewExpired     View = "expired"
	ViewCancelled   View = "cancelled"
	ViewSuccess     View = "success"
)

// PageData is the view selector plus render context for the pay page.
type PageData struct {
	View    View
	Message string
	Token   string
	OrderID string
	Email   string
	Amount  decimal.Decimal
}

type CreateLinkInput struct {
	OrderID string
	Email   string
	Amount  decimal.Decimal
}

type CreateLinkResult struct {
	Token       string
	PaymentURL  string
	AlreadyPaid bool
	Reused      bool
	ExpiresIn   time.Duration
}

type PaymentLinkService interface {
	CreateOrReuse(ctx context.Context, in CreateLinkInput) (*CreateLinkResult, error)
	RenderPageData(ctx context.Context, token string) (*PageData, error)
	InitiateCheckout(ctx context.Context, token string) (string, error)
	ReconcileSuccess(ctx context.Context, token, sessionID string) (*PageData, error)
	Cancel(ctx context.Context, token string) (*PageData, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context, f repo.ListFilter) ([]domain.PaymentLink, int64, error)
	ExportRows(ctx context.Context, f repo.ListFilter) ([][]string, error)
}

type paymentLinkService struct {
	links    repo.PaymentLinkRepo
	gateway  payment.CheckoutGateway
	validate *validator.Validate
	logger   *slog.Logger
	baseURL  string
	currency string
	window   time.Duration
	now      func() time.Time
}

func NewPaymentLinkService(
	links repo.PaymentLinkRepo,
	gateway payment.CheckoutGateway,
	logger *slog.Logger,
	baseURL string,
	window time.Duration,
) PaymentLinkService {
	return &paymentLinkService{
		links:    links,
		gateway:  gateway,
		validate: validator.New(),
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: "usd",
		window:   window,
		now:      time.Now,
	}
}

// CreateOrReuse is the idempotent creation operation: repeated requests for
// the same order return the existing live link instead of minting a second
// one. The active-order unique index backs this up under concurrent calls.
func (s *paymentLinkService) CreateOrReuse(ctx context.Context, in CreateLinkInput) (*CreateLinkResult, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, domain.NewValidationError("order_id", "must not be empty")
	}
	if err := s.validate.Var(in.Email, "required,email"); err != nil {
		return nil, domain.NewValidationError("email", "must be a well-formed email address")
	}
	if in.Amount.Sign() <= 0 {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}

	now := s.now()
	existing, err := s.links.FindActiveByOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("look up active link: %w", err)
	}
	if existing != nil {
		switch domain.EffectiveStatus(existing, now, s.window) {
		case domain.StatusPaid:
			return &CreateLinkResult{Token: existing.Token, AlreadyPaid: true}, nil
		case domain.StatusPending:
			return &CreateLinkResult{
				Token:      existing.Token,
				PaymentURL: s.paymentURL(existing.Token),
				Reused:     true,
				ExpiresIn:  domain.RemainingValidity(existing, now, s.window),
			}, nil
		default:
			// Stored pending but past the window. Materialize expired so the
			// active-order index frees up for the replacement link.
			if _, err := s.links.TransitionStatus(ctx, existing.ID, domain.StatusExpired, domain.StatusPending); err != nil {
				return nil, fmt.Errorf("expire stale link: %w", err)
			}
		}
	}

	return s.mint(ctx, in, now)
}

func (s *paymentLinkService) mint(ctx context.Context, in CreateLinkInput, now time.Time) (*CreateLinkResult, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	link := &domain.PaymentLink{
		Token:     token,
		OrderID:   in.OrderID,
		Email:     in.Email,
		Amount:    in.Amount,
		CreatedAt: now,
		Status:    domain.StatusPending,
	}
	err = s.links.Insert(ctx, link)
	if errors.Is(err, domain.ErrDuplicateActive) {
		// Lost a creation race; hand back the winner's link.
		winner, ferr := s.links.FindActiveByOrderID(ctx, in.OrderID)
		if ferr != nil || winner == nil {
			return nil, err
		}
		if domain.EffectiveStatus(winner, now, s.window) == domain.StatusPaid {
			return &CreateLinkResult{Token: winner.Token, AlreadyPaid: true}, nil
		}
		return &CreateLinkResult{
			Token:      winner.Token,
			PaymentURL: s.paymentURL(winner.Token),
			Reused:     true,
			ExpiresIn:  domain.RemainingValidity(winner, now, s.window),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert payment link: %w", err)
	}

	s.logger.Info("payment link created", "id", link.ID, "order_id", link.OrderID)
	return &CreateLinkResult{Token: token, PaymentURL: s.paymentURL(token), ExpiresIn: s.window}, nil
}

// RenderPageData resolves a token to a view selector, lazily persisting
// expiry first so subsequent reads agree with what was rendered.
func (s *paymentLinkService) RenderPageData(ctx context.Context, token string) (*PageData, error) {
	link, err := s.fetch(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if link.Status == domain.StatusPending && domain.IsExpired(link, now, s.window) {
		if _, err := s.links.TransitionStatus(ctx, link.ID, domain.StatusExpired, domain.StatusPending); err != nil {
			return nil, fmt.Errorf("expire link: %w", err)
		}
		link.Status = domain.StatusExpired
	}

	switch link.Status {
	case domain.StatusPaid:
		return &PageData{View: ViewPaid, Message: "Payment has already been made."}, nil
	case domain.StatusExpired, domain.StatusCancelled:
		return &PageData{View: ViewExpired, Message: "This payment link has expired."}, nil
	default:
		return &PageData{
			View:    ViewPaymentForm,
			Token:   link.Token,
			OrderID: link.OrderID,
			Email:   link.Email,
			Amount:  link.Amount,
		}, nil
	}
}

// InitiateCheckout opens a gateway checkout session for a live pending link
// and returns the redirect target. No local state changes here: the link
// stays pending until the gateway reports an outcome, so a timed-out call
// leaves the record untouched.
func (s *paymentLinkService) InitiateCheckout(ctx context.Context, token string) (string, error) {
	link, err := s.fetch(ctx, token)
	if err != nil {
		return "", err
	}

	now := s.now()
	if link.Status == domain.StatusPaid {
		return "", domain.ErrAlreadyCompleted
	}
	if !domain.CanInitiateCheckout(link, now, s.window) {
		return "", domain.ErrLinkExpired
	}

	// {CHECKOUT_SESSION_ID} is substituted by the gateway on redirect.
	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:          link.OrderID,
		AmountMinor:      link.AmountMinorUnits(),
		Currency:         s.currency,
		PayerEmail:       link.Email,
		CorrelationToken: link.Token,
		SuccessURL:       s.baseURL + "/payment_success?session_id={CHECKOUT_SESSION_ID}&token=" + link.Token,
		CancelURL:        s.baseURL + "/payment_cancelled?token=" + link.Token,
	})
	if err != nil {
		s.logger.Error("checkout session creation failed", "order_id", link.OrderID, "error", err)
		return "", err
	}

	return sess.RedirectURL, nil
}

// ReconcileSuccess verifies the gateway's outcome for a session the payer
// was redirected back with, then records it. The session id comes off an
// attacker-observable URL, so the session is trusted only after its
// correlation metadata matches the token.
func (s *paymentLinkService) ReconcileSuccess(ctx context.Context, token, sessionID string) (*PageData, error) {
	link, err := s.fetch(ctx, token)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("checkout session retrieval failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	if sess.PaymentStatus != payment.SessionPaid {
		return nil, domain.ErrPaymentNotCompleted
	}
	if sess.Metadata[payment.MetadataTokenKey] != token {
		s.logger.Warn("session metadata does not match link token",
			"session_id", sessionID, "order_id", link.OrderID)
		return nil, domain.ErrTokenMismatch
	}

	if link.Status != domain.StatusPaid {
		// The charge is authoritative: a link that lapsed to expired or
		// cancelled while the payer was on the hosted page still ends paid.
		applied, err := s.links.TransitionStatus(ctx, link.ID, domain.StatusPaid,
			domain.StatusPending, domain.StatusExpired, domain.StatusCancelled)
		if err != nil {
			return nil, fmt.Errorf("mark link paid: %w", err)
		}
		if applied {
			s.logger.Info("payment reconciled", "id", link.ID, "order_id", link.OrderID)
		}
	}

	return &PageData{View: ViewSuccess, Message: "Payment successful!"}, nil
}

// Cancel records payer-initiated abandonment. Only a pending link is
// overwritten; a link that already reached a terminal state reports that
// state instead.
func (s *paymentLinkService) Cancel(ctx context.Context, token string) (*PageData, error) {
	link, err := s.fetch(ctx, token)
	if err != nil {
		return nil, err
	}

	applied, err := s.links.TransitionStatus(ctx, link.ID, domain.StatusCancelled, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("cancel link: %w", err)
	}
	if applied {
		return &PageData{View: ViewCancelled, Message: "Payment was cancelled."}, nil
	}

	if fresh, ferr := s.links.FindByToken(ctx, token); ferr == nil && fresh != nil {
		link = fresh
	}
	if link.Status == domain.StatusPaid {
		return &PageData{View: ViewPaid, Message: "Payment has already been made."}, nil
	}
	return &PageData{View: ViewExpired, Message: "This payment link has expired."}, nil
}

// SweepExpired promotes stale pending links to expired and returns the count
// transitioned. Idempotent: already-expired links fall out of the filter, so
// re-running after a partial failure is safe.
func (s *paymentLinkService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.links.FindStalePending(ctx, now.Add(-s.window), sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("find stale links: %w", err)
	}

	count := 0
	for _, link := range stale {
		applied, err := s.links.TransitionStatus(ctx, link.ID, domain.StatusExpired, domain.StatusPending)
		if err != nil {
			s.logger.Error("sweep: expire link failed", "id", link.ID, "error", err)
			continue
		}
		if applied {
			count++
		}
	}

	if count > 0 {
		s.logger.Info("expired stale payment links", "count", count)
	}
	return count, nil
}

func (s *paymentLinkService) List(ctx context.Context, f repo.ListFilter) ([]domain.PaymentLink, int64, error) {
	return s.links.ListFiltered(ctx, f)
}

// ExportRows returns the full filtered result set as tabular rows, header
// first, for the CSV export endpoint.
func (s *paymentLinkService) ExportRows(ctx context.Context, f repo.ListFilter) ([][]string, error) {
	f.Page, f.PerPage = 0, 0
	links, _, err := s.links.ListFiltered(ctx, f)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(links)+1)
	rows = append(rows, []string{"ID", "Token", "Order ID", "Email", "Amount", "Created At", "Status"})
	for _, l := range links {
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.Token,
			l.OrderID,
			l.Email,
			l.Amount.StringFixed(2),
			l.CreatedAt.Format(time.RFC3339),
			string(l.Status),
		})
	}
	return rows, nil
}

func (s *paymentLinkService) fetch(ctx context.Context, token string) (*domain.PaymentLink, error) {
	link, err := s.links.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find link by token: %w", err)
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *paymentLinkService) paymentURL(token string) string {
	return s.baseURL + "/pay/" + token
}

// newToken mints the unguessable external handle: 128 random bits,
// hex-encoded to 32 characters.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
