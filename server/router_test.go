package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nullashop.io/shop/cart"
	"nullashop.io/shop/checkout"
	"nullashop.io/shop/models"
	"nullashop.io/shop/models/enum"
	"nullashop.io/shop/product"
	"nullashop.io/shop/storage"
)

// mockService implements shop.Service over in-memory maps. Only the parts
// the handlers touch do real work.
type mockService struct {
	products map[uint64]*models.Product
	orders   map[uint64]*models.Order
	nextID   uint64
}

func newMockService() *mockService {
	return &mockService{
		products: make(map[uint64]*models.Product),
		orders:   make(map[uint64]*models.Order),
	}
}

func (m *mockService) ListProducts(_ context.Context, _, _ uint64) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockService) ListFeaturedProducts(_ context.Context) ([]*models.Product, error) {
	return nil, nil
}

func (m *mockService) GetProduct(_ context.Context, id uint64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockService) SearchProducts(_ context.Context, _ string) ([]*models.Product, error) {
	return nil, nil
}

func (m *mockService) CreateProduct(_ context.Context, p *models.Product) error {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return nil
}

func (m *mockService) UpdateProduct(_ context.Context, p *models.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockService) DeleteProduct(_ context.Context, id uint64) error {
	if _, ok := m.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockService) AttachProductImage(_ context.Context, productID uint64, _, _ string, _ []byte) (*models.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockService) RemoveProductImage(_ context.Context, productID uint64, _ string) error {
	if _, ok := m.products[productID]; !ok {
		return product.ErrNotFound
	}
	return nil
}

func (m *mockService) PlaceOrder(_ context.Context, o *models.Order) (*models.Order, error) {
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockService) GetOrder(_ context.Context, id uint64) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return o, nil
}

func (m *mockService) ListUserOrders(_ context.Context, userID string) ([]*models.Order, error) {
	out := make([]*models.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockService) ListAllOrders(_ context.Context, _, _ uint64) ([]*models.Order, error) {
	out := make([]*models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockService) UpdateOrderStatus(_ context.Context, orderID uint64, status enum.OrderStatus) error {
	o, ok := m.orders[orderID]
	if !ok {
		return errors.New("not found")
	}
	o.Status = status
	return nil
}

func (m *mockService) CancelOrder(_ context.Context, orderID uint64, _ string) error {
	return m.UpdateOrderStatus(nil, orderID, enum.OrderStatusCancelled)
}

// mockAuthenticator resolves two fixed tokens: user-jwt and admin-jwt.
type mockAuthenticator struct{}

func (mockAuthenticator) userFor(token string) *models.User {
	switch token {
	case "user-jwt":
		return &models.User{ID: "user-1", Email: "user@example.com"}
	case "admin-jwt":
		return &models.User{ID: "admin-1", Email: "admin@example.com",
			AppMetadata: map[string]any{"role": "admin"}}
	}
	return nil
}

func (a mockAuthenticator) UserFromToken(_ context.Context, token string) (*models.User, error) {
	if u := a.userFor(token); u != nil {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

func (a mockAuthenticator) SignIn(_ context.Context, email, password string) (*models.Session, error) {
	if email == "user@example.com" && password == "secret" {
		return &models.Session{AccessToken: "user-jwt", User: a.userFor("user-jwt")}, nil
	}
	return nil, errors.New("invalid login credentials")
}

func (a mockAuthenticator) SignUp(_ context.Context, email, _, _ string) (*models.Session, error) {
	return &models.Session{AccessToken: "user-jwt", User: &models.User{ID: "new-user", Email: email}}, nil
}

func (mockAuthenticator) SignOut(_ context.Context, _ string) error { return nil }

func (mockAuthenticator) AuthorizeURL(provider, _ string) string {
	return "https://auth.example.com/authorize?provider=" + provider
}

// client keeps the session cookie between requests against the router.
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
	bearer  string
}

func (c *client) do(method, target, body string) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func newTestClient(t *testing.T, svc *mockService) *client {
	t.Helper()

	logger := zap.NewNop()
	carts := cart.NewStore(logger)
	checkouts := checkout.NewManager(carts, svc, stripe.CurrencyTWD, logger)
	bucket, err := storage.NewBucket("product-images", t.TempDir(), "http://localhost:8080", logger)
	require.NoError(t, err)

	router := NewRouter(Deps{
		Shop:     svc,
		Carts:    carts,
		Checkout: checkouts,
		Auth:     mockAuthenticator{},
		Bucket:   bucket,
		Logger:   logger,
	})
	return &client{t: t, handler: router}
}

func seedProduct(svc *mockService) *models.Product {
	p := &models.Product{Name: "茶壺", Price: 250, ImageURLs: []string{"http://localhost:8080/x.png"}}
	_ = svc.CreateProduct(context.Background(), p)
	return p
}

func TestCartEndpoints(t *testing.T) {
	svc := newMockService()
	p := seedProduct(svc)
	c := newTestClient(t, svc)

	rec := c.do(http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var view cartView
	decode(t, rec, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, p.Name, view.Items[0].Name)
	assert.Equal(t, uint64(2), view.Items[0].Quantity)
	assert.Equal(t, 500.0, view.TotalAmount)
	assert.Equal(t, uint64(2), view.TotalCount)

	rec = c.do(http.MethodPatch, "/api/cart/items/1", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, uint64(5), view.TotalCount)

	rec = c.do(http.MethodPatch, "/api/cart/items/1", `{"quantity": 0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Empty(t, view.Items)
}

func TestAddUnknownProduct(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodPost, "/api/cart/items", `{"product_id": 99}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutRequiresNonEmptyCart(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginGatedCheckoutOverHTTP(t *testing.T) {
	svc := newMockService()
	seedProduct(svc)
	c := newTestClient(t, svc)

	rec := c.do(http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// begin without a session parks the flow at the login prompt
	rec = c.do(http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state checkoutStateResponse
	decode(t, rec, &state)
	require.Equal(t, enum.CheckoutStateAwaitingLogin, state.State)

	// confirming in that state is rejected
	rec = c.do(http.MethodPost, "/api/checkout/confirm", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	// signing in resumes the checkout in the same request
	rec = c.do(http.MethodPost, "/api/auth/signin", `{"email": "user@example.com", "password": "secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var auth authResponse
	decode(t, rec, &auth)
	assert.True(t, auth.CheckoutResumed)
	require.Equal(t, enum.CheckoutStateAwaitingConfirmation, auth.CheckoutState)

	// confirm with the issued token
	c.bearer = auth.Session.AccessToken
	rec = c.do(http.MethodPost, "/api/checkout/confirm", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var receipt checkout.Receipt
	decode(t, rec, &receipt)
	assert.Equal(t, 250.0, receipt.TotalAmount)
	assert.Equal(t, uint64(1), receipt.TotalCount)

	// the cart is empty afterwards
	rec = c.do(http.MethodGet, "/api/cart", "")
	var view cartView
	decode(t, rec, &view)
	assert.Empty(t, view.Items)

	// and the order is visible under my orders
	rec = c.do(http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []*models.Order
	decode(t, rec, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, "user-1", orders[0].UserID)
}

func TestAbandonOverHTTP(t *testing.T) {
	svc := newMockService()
	seedProduct(svc)
	c := newTestClient(t, svc)

	c.do(http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	c.do(http.MethodPost, "/api/checkout", "")

	rec := c.do(http.MethodPost, "/api/checkout/abandon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state checkoutStateResponse
	decode(t, rec, &state)
	assert.Equal(t, enum.CheckoutStateIdle, state.State)
}

func TestSignInFailureHasNoSession(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodPost, "/api/auth/signin", `{"email": "user@example.com", "password": "wrong"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSignInValidation(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodPost, "/api/auth/signin", `{"email": "user@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "email and password required", body.Error)
}

func TestOrdersRequireAuth(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	svc := newMockService()
	c := newTestClient(t, svc)

	rec := c.do(http.MethodPost, "/api/admin/products", `{"name": "茶壺", "price": 250}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c.bearer = "user-jwt"
	rec = c.do(http.MethodPost, "/api/admin/products", `{"name": "茶壺", "price": 250}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	c.bearer = "admin-jwt"
	rec = c.do(http.MethodPost, "/api/admin/products", `{"name": "茶壺", "price": 250}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Product
	decode(t, rec, &created)
	assert.Equal(t, uint64(1), created.ID)
	assert.Equal(t, "茶壺", created.Name)
}

func TestAdminUpdateOrderStatusValidation(t *testing.T) {
	svc := newMockService()
	c := newTestClient(t, svc)
	c.bearer = "admin-jwt"

	rec := c.do(http.MethodPatch, "/api/admin/orders/1", `{"status": "亂填"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthURL(t *testing.T) {
	c := newTestClient(t, newMockService())

	rec := c.do(http.MethodGet, "/api/auth/oauth/google", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "https://auth.example.com/authorize?provider=google", body["url"])
}
