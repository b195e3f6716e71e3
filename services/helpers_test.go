package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mesa-qr-orders/database"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// fixture wires the real gorm stores with a recording publisher.
type fixture struct {
	db      *gorm.DB
	tables  *database.TableSessions
	orders  *database.Orders
	tokens  *services.TokenManager
	events  *recordingPublisher
	service *services.OrderService
	menu    map[string]string // name -> product ref
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		db:     db,
		tables: database.NewTableSessions(db),
		orders: database.NewOrders(db),
		events: &recordingPublisher{},
		menu:   map[string]string{},
	}
	f.tokens = services.NewTokenManager(f.tables, time.Hour)
	f.service = services.NewOrderService(f.orders, f.tables, f.tokens, database.NewMenus(db), f.events, time.Second)

	f.seedTable(t, "m1", "b1", "r1", true)
	f.seedMenu(t, "Empanada", "3.50", true)
	f.seedMenu(t, "Agua", "1.25", true)
	f.seedMenu(t, "Flan", "4.00", false)
	return f
}

func (f *fixture) seedTable(t *testing.T, mesa, branch, restaurant string, active bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.TableSession{
		MesaID:       mesa,
		BranchID:     branch,
		RestaurantID: restaurant,
		Label:        "Mesa " + mesa,
		IsActive:     active,
	}).Error)
}

func (f *fixture) seedMenu(t *testing.T, name, price string, available bool) {
	t.Helper()
	menu := models.Menu{RestaurantID: "r1", Name: name, Price: decimal.RequireFromString(price), Available: available}
	require.NoError(t, f.db.Create(&menu).Error)
	f.menu[name] = fmt.Sprint(menu.ID)
}

func (f *fixture) issue(t *testing.T, mesa, branch string) string {
	t.Helper()
	token, err := f.tokens.Issue(context.Background(), mesa, branch, 0)
	require.NoError(t, err)
	return token
}

// placeOrder creates a PAYMENT_PENDING order for m1/b1 worth 7.00.
func (f *fixture) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.service.CreateForCustomer(context.Background(), services.CustomerOrderInput{
		MesaID:   "m1",
		BranchID: "b1",
		Token:    f.issue(t, "m1", "b1"),
		Items:    []services.ItemInput{{ID: f.menu["Empanada"], Quantity: 2}},
	})
	require.NoError(t, err)
	return order
}

// forceStatus puts an order into any state directly, bypassing the graph.
func (f *fixture) forceStatus(t *testing.T, id string, status models.OrderStatus) {
	t.Helper()
	require.NoError(t, f.orders.ForceStatus(context.Background(), id, services.StatusUpdate{
		Status:        status,
		PaymentStatus: status.PaymentStatus("pending"),
	}))
}

type publishedEvent struct {
	BranchID string
	MesaID   string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishOrdersUpdated(ctx context.Context, branchID, mesaID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{BranchID: branchID, MesaID: mesaID})
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingTokens validates like the wrapped manager but can never invalidate.
type failingTokens struct {
	*services.TokenManager
}

func (failingTokens) Invalidate(ctx context.Context, mesaID, branchID string) error {
	return errors.New("token store unavailable")
}

type fakeProvider struct {
	mu          sync.Mutex
	payments    map[string]*services.PaymentInfo
	preferences []services.PreferenceRequest
	refunds     []string
	refundErr   error
	lastCred    services.Credential
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{payments: map[string]*services.PaymentInfo{}}
}

func (p *fakeProvider) CreatePreference(ctx context.Context, cred services.Credential, req services.PreferenceRequest) (*services.Preference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastCred = cred
	p.preferences = append(p.preferences, req)
	return &services.Preference{ID: "pref-" + req.ExternalReference, InitPoint: "https://mp.test/checkout"}, nil
}

func (p *fakeProvider) GetPaymentInfo(ctx context.Context, cred services.Credential, paymentID string) (*services.PaymentInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastCred = cred
	info, ok := p.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", services.ErrProviderRejected, paymentID)
	}
	return info, nil
}

func (p *fakeProvider) RefundPayment(ctx context.Context, cred services.Credential, paymentID string, amount *decimal.Decimal) (*services.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastCred = cred
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	p.refunds = append(p.refunds, paymentID)
	return &services.Refund{ID: "refund-" + paymentID, PaymentID: paymentID, Status: "approved"}, nil
}

func (p *fakeProvider) addPayment(id, status, externalReference string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[id] = &services.PaymentInfo{ID: id, Status: status, ExternalReference: externalReference}
}
