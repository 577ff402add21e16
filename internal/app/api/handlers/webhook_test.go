package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/internal/app/service/intake"
	"github.com/clubgate/clubgate/internal/app/service/membership"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/tool"
	"github.com/clubgate/clubgate/pkg/types"
)

const webhookTestSecret = "route-secret"

// webhookStore implements only what the capture path touches.
type webhookStore struct {
	membership.Store
	users       map[string]*models.User
	channels    map[string]*models.Channel
	memberships map[string]*models.Membership
	payments    map[string]*models.Payment
}

func newWebhookStore() *webhookStore {
	return &webhookStore{
		users:       map[string]*models.User{},
		channels:    map[string]*models.Channel{},
		memberships: map[string]*models.Membership{},
		payments:    map[string]*models.Payment{},
	}
}

func (f *webhookStore) Transact(ctx context.Context, fn func(membership.Store) error) error {
	return fn(f)
}

func (f *webhookStore) EnsureUser(_ context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	u := &models.User{ID: tool.GenerateUUIDV7(), TelegramID: telegramID, Username: username, FirstName: firstName, Tier: types.TierBudget, Status: types.UserStatusActive}
	f.users[u.ID] = u
	return u, nil
}

func (f *webhookStore) SaveUser(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *webhookStore) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, membership.ErrNotFound
}

func (f *webhookStore) ActiveMembership(_ context.Context, userID, channelID string) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.UserID == userID && m.ChannelID == channelID && m.IsActive {
			return m, nil
		}
	}
	return nil, membership.ErrNotFound
}

func (f *webhookStore) SaveMembership(_ context.Context, m *models.Membership) error {
	f.memberships[m.ID] = m
	return nil
}

func (f *webhookStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.payments[p.ID] = p
	return nil
}

func (f *webhookStore) PaymentByProviderID(_ context.Context, providerPaymentID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ProviderPaymentID == providerPaymentID {
			return p, nil
		}
	}
	return nil, membership.ErrNotFound
}

type webhookMessenger struct{}

func (webhookMessenger) CreateInviteLink(_ context.Context, chatID int64, _ time.Time) (string, error) {
	return fmt.Sprintf("https://t.me/+i%d", chatID), nil
}
func (webhookMessenger) SendMessage(context.Context, int64, string) error { return nil }
func (webhookMessenger) RevokeAccess(context.Context, int64, int64) error { return nil }

type webhookAudit struct{}

func (webhookAudit) Save(context.Context, *models.WebhookEventLog) {}

func webhookTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := newWebhookStore()
	channel := &models.Channel{ID: tool.GenerateUUIDV7(), Title: "Signals", ChatID: -100123, IsActive: true}
	st.channels[channel.ID] = channel

	days := 30
	cfg := &config.Config{
		Webhook: config.WebhookConfig{Secret: webhookTestSecret},
		Tiers:   types.DefaultTierThresholds,
		Plans: []*types.Plan{
			{ID: "monthly", Title: "30 days", PriceMinor: 99_900, Currency: "INR", ChannelID: channel.ID, DurationDays: &days},
		},
	}
	log := zap.NewNop().Sugar()
	engine := membership.NewService(st, webhookMessenger{}, cfg, log)
	h := intake.NewHandler(cfg, st, engine, webhookAudit{}, log)

	r := gin.New()
	RegisterWebhookRoutes(r, h)
	return r
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func capturedEvent(payID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": %q, "amount": 99900, "currency": "INR",
			"notes": {"user_id": "555", "plan_id": "monthly"}
		}}}
	}`, payID))
}

func TestWebhookOK(t *testing.T) {
	r := webhookTestRouter()
	body := capturedEvent("pay_1")

	w := postWebhook(r, body, intake.Sign(webhookTestSecret, body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestWebhookBadSignature(t *testing.T) {
	r := webhookTestRouter()
	body := capturedEvent("pay_1")

	w := postWebhook(r, body, "deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(r, body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookIgnoredEvent(t *testing.T) {
	r := webhookTestRouter()
	body := []byte(`{"event": "payment.failed", "payload": {"payment": {"entity": {"id": "pay_2"}}}}`)

	w := postWebhook(r, body, intake.Sign(webhookTestSecret, body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
}

func TestWebhookMalformedBody(t *testing.T) {
	r := webhookTestRouter()
	body := []byte(`{"event":`)

	w := postWebhook(r, body, intake.Sign(webhookTestSecret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRenewalAliasRoute(t *testing.T) {
	r := webhookTestRouter()
	body := capturedEvent("pay_3")

	req := httptest.NewRequest(http.MethodPost, "/webhook/renewal", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, intake.Sign(webhookTestSecret, body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
