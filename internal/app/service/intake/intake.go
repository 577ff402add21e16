package intake

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/app/service/webhooklog"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/logctx"
	"github.com/clubgate/clubgate/pkg/types"
)

var (
	// ErrBadSignature rejects a notification at the boundary; it never
	// reaches the lifecycle engine.
	ErrBadSignature = errors.New("webhook signature mismatch")
	// ErrMalformed covers notifications missing the user or plan identifier.
	ErrMalformed = errors.New("malformed payment notification")
)

// EventPaymentCaptured is the only event type that mutates state. Everything
// else is acknowledged and ignored so the gateway stops retrying.
const EventPaymentCaptured = "payment.captured"

type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeIgnored OutcomeStatus = "ignored"
)

// Outcome is what the webhook handler reports back to the gateway.
type Outcome struct {
	Status    OutcomeStatus
	Duplicate bool
	Result    *membership.PurchaseResult
}

// notification mirrors the gateway's webhook payload shape.
type notification struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Notes    struct {
		UserID    string `json:"user_id"`
		PlanID    string `json:"plan_id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	} `json:"notes"`
}

// Sign computes the hex HMAC-SHA256 digest of body under secret.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature compares the header-supplied signature against the digest
// of the raw body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// AuditLog records every inbound notification for later inspection.
type AuditLog interface {
	Save(ctx context.Context, entry *models.WebhookEventLog)
}

// Handler authenticates gateway notifications and hands captured payments to
// the lifecycle engine.
type Handler struct {
	cfg    *config.Config
	store  membership.Store
	engine *membership.Service
	audit  AuditLog
	Logger *zap.SugaredLogger
}

func NewHandler(cfg *config.Config, store membership.Store, engine *membership.Service, audit AuditLog, log *zap.SugaredLogger) *Handler {
	return &Handler{cfg: cfg, store: store, engine: engine, audit: audit, Logger: log}
}

var Module = fx.Options(
	fx.Provide(func(s *webhooklog.Service) AuditLog { return s }),
	fx.Provide(NewHandler),
)

// Handle verifies, parses and applies one inbound notification. The raw body
// must be the exact bytes the signature was computed over.
func (h *Handler) Handle(ctx context.Context, body []byte, signature, traceID string) (out *Outcome, resErr error) {
	if !VerifySignature(h.cfg.Webhook.Secret, body, signature) {
		return nil, ErrBadSignature
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMalformed, err)
		h.auditMalformed(ctx, body, traceID, wrapped)
		return nil, wrapped
	}
	entity := n.Payload.Payment.Entity

	entry := &models.WebhookEventLog{
		Event:             n.Event,
		ProviderPaymentID: entity.ID,
		TraceID:           traceID,
		Data:              datatypes.JSON(body),
		Status:            models.WebhookEventLogStatusReceived,
	}
	h.audit.Save(ctx, entry)

	defer func() {
		result := &models.WebhookEventLog{
			Event:             n.Event,
			ProviderPaymentID: entity.ID,
			TraceID:           traceID,
			Data:              datatypes.JSON(body),
		}
		resMap := map[string]any{}
		switch {
		case resErr != nil:
			result.Status = models.WebhookEventLogStatusHandleFailed
			resMap["error"] = resErr.Error()
		case out != nil && out.Status == OutcomeIgnored:
			result.Status = models.WebhookEventLogStatusIgnored
		default:
			result.Status = models.WebhookEventLogStatusHandled
			if out != nil {
				resMap["duplicate"] = out.Duplicate
				if out.Result != nil && out.Result.Membership != nil {
					resMap["membership_id"] = out.Result.Membership.ID
					resMap["notify"] = out.Result.Notify
				}
			}
		}
		resBytes, _ := json.Marshal(resMap)
		j := datatypes.JSON(resBytes)
		result.Result = &j
		h.audit.Save(ctx, result)
	}()

	if n.Event != EventPaymentCaptured {
		logctx.FromCtx(ctx, h.Logger).Infow("webhook_event_ignored", "event", n.Event)
		return &Outcome{Status: OutcomeIgnored}, nil
	}

	params, err := h.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	res, err := h.engine.CreateOrExtend(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("failed to apply captured payment: %w", err)
	}
	return &Outcome{Status: OutcomeOK, Duplicate: res.Duplicate, Result: res}, nil
}

// auditMalformed writes the received/handle_failed pair for bodies that never
// parsed. The raw body is stored as a JSON string since it is not valid JSON
// itself; event and payment id stay empty.
func (h *Handler) auditMalformed(ctx context.Context, body []byte, traceID string, cause error) {
	raw, _ := json.Marshal(string(body))
	h.audit.Save(ctx, &models.WebhookEventLog{
		TraceID: traceID,
		Data:    datatypes.JSON(raw),
		Status:  models.WebhookEventLogStatusReceived,
	})
	resBytes, _ := json.Marshal(map[string]any{"error": cause.Error()})
	j := datatypes.JSON(resBytes)
	h.audit.Save(ctx, &models.WebhookEventLog{
		TraceID: traceID,
		Data:    datatypes.JSON(raw),
		Status:  models.WebhookEventLogStatusHandleFailed,
		Result:  &j,
	})
}

// resolve extracts and validates the purchase parameters from the payment
// entity. Renewal plan ids carry the membership they extend.
func (h *Handler) resolve(ctx context.Context, entity paymentEntity) (*membership.PurchaseParams, error) {
	if entity.ID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformed)
	}
	if entity.Notes.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id note", ErrMalformed)
	}
	if entity.Notes.PlanID == "" {
		return nil, fmt.Errorf("%w: missing plan_id note", ErrMalformed)
	}
	telegramID, err := strconv.ParseInt(entity.Notes.UserID, 10, 64)
	if err != nil || telegramID == 0 {
		return nil, fmt.Errorf("%w: invalid user_id note %q", ErrMalformed, entity.Notes.UserID)
	}

	planID := entity.Notes.PlanID
	channelID := ""
	if membershipID, renewPlan, ok := types.ParseRenewPlanID(planID); ok {
		m, err := h.store.GetMembership(ctx, membershipID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve renewal membership %s: %w", membershipID, err)
		}
		planID = renewPlan
		channelID = m.ChannelID
	}

	plan := h.cfg.GetPlanByID(planID)
	if plan == nil {
		// Never default a price: an unknown plan is fatal for this request.
		return nil, fmt.Errorf("%w: %s", membership.ErrUnknownPlan, planID)
	}
	if channelID == "" {
		channelID = plan.ChannelID
	}
	if channelID == "" {
		return nil, fmt.Errorf("%w: plan %s has no channel binding", ErrMalformed, planID)
	}

	return &membership.PurchaseParams{
		TelegramID:        telegramID,
		Username:          entity.Notes.Username,
		FirstName:         entity.Notes.FirstName,
		ChannelID:         channelID,
		Plan:              plan,
		AmountMinor:       entity.Amount,
		Currency:          entity.Currency,
		ProviderPaymentID: entity.ID,
		Reason:            types.MembershipChangeReasonPurchase,
		Now:               time.Now(),
	}, nil
}
