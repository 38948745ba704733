package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/controllers"
	"github.com/yeremiapane/restaurant-pos/database/dbtest"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notifications"
	"github.com/yeremiapane/restaurant-pos/realtime"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/session"
	"github.com/yeremiapane/restaurant-pos/storage"
	"github.com/yeremiapane/restaurant-pos/store"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type testServer struct {
	router *gin.Engine
	tokens *utils.TokenManager
	gw     *gateway.Gateway
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := quietLogger()

	gw := gateway.New(dbtest.New(t), log)
	reg := realtime.NewRegistry(log)
	reg.Start()
	t.Cleanup(reg.Stop)

	notes := notifications.NewService(gw, notifications.NewLocalBroadcaster(), log)
	require.NoError(t, notes.Start())
	t.Cleanup(notes.Stop)

	stores := store.NewManager(gw, reg, log, "Meu Restaurante")
	t.Cleanup(stores.Close)

	tm := utils.NewTokenManager("test-secret")
	r := router.SetupRouter(router.Deps{
		Gateway:       gw,
		Stores:        stores,
		Notifications: notes,
		Sessions:      session.NewMemoryStore(),
		Uploader:      storage.NewUploader(t.TempDir(), "http://pos.test"),
		Hub:           kds.NewHub(reg, notes, nil, log),
		Tokens:        tm,
		Log:           log,
		CORSOrigin:    "*",
	})
	return &testServer{router: r, tokens: tm, gw: gw}
}

// user creates an account directly and returns its bearer token.
func (ts *testServer) user(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	u := models.User{Name: email, Email: email, Password: "x", Role: role}
	require.NoError(t, gateway.Create(context.Background(), ts.gw, &u))
	token, err := ts.tokens.GenerateToken(u.ID, role)
	require.NoError(t, err)
	return u, token
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestTableFourFlow(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)

	code, env := ts.do(t, "POST", "/api/tables", token, gin.H{"number": 4, "capacity": 4})
	require.Equal(t, http.StatusCreated, code, env.Message)
	table := decode[models.Table](t, env.Data)

	code, env = ts.do(t, "POST", "/api/products", token, gin.H{"name": "Pastel", "price": 10, "category": "petiscos"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	pastel := decode[models.Product](t, env.Data)
	_, env = ts.do(t, "POST", "/api/products", token, gin.H{"name": "Chopp", "price": 15, "category": "bebidas"})
	chopp := decode[models.Product](t, env.Data)

	code, env = ts.do(t, "POST", fmt.Sprintf("/api/tables/%d/occupy", table.ID), token, gin.H{"server_name": "Ana"})
	require.Equal(t, http.StatusOK, code, env.Message)
	seated := decode[struct {
		Table models.Table `json:"table"`
		Order models.Order `json:"order"`
	}](t, env.Data)
	assert.Equal(t, models.TableOccupied, seated.Table.Status)

	items := fmt.Sprintf("/api/orders/%d/items", seated.Order.ID)
	code, _ = ts.do(t, "POST", items, token, gin.H{"product_id": pastel.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(t, "POST", items, token, gin.H{"product_id": chopp.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, code)

	code, env = ts.do(t, "GET", fmt.Sprintf("/api/tables/%d/bill", table.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 98.5, decode[map[string]float64](t, env.Data)["total"])

	code, env = ts.do(t, "GET", fmt.Sprintf("/api/tables/%d/bill?discount_type=percent&discount_value=10", table.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 88.65, decode[map[string]float64](t, env.Data)["total"])

	code, env = ts.do(t, "GET", "/api/kitchen/items", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.ItemView](t, env.Data), 2)

	code, env = ts.do(t, "POST", fmt.Sprintf("/api/tables/%d/finalize", table.ID), token, gin.H{"method": "pix"})
	require.Equal(t, http.StatusOK, code, env.Message)
	paid := decode[gateway.PaymentResult](t, env.Data)
	assert.Equal(t, 35.0, paid.Sale.Total)
	assert.Equal(t, models.TableFree, paid.Table.Status)
	assert.Nil(t, paid.Table.OpenedAt)

	code, env = ts.do(t, "GET", "/api/tables", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "List of tables", env.Message)
	tables := decode[[]models.Table](t, env.Data)
	require.Len(t, tables, 1)
	assert.Equal(t, models.TableFree, tables[0].Status)
	assert.Zero(t, tables[0].Total)

	// the owner was notified of the payment
	code, env = ts.do(t, "GET", "/api/notifications?unread=true", token, nil)
	require.Equal(t, http.StatusOK, code)
	notes := decode[[]models.Notification](t, env.Data)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyPayment, notes[0].Type)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)

	code, _ := ts.do(t, "POST", "/api/tables", token, gin.H{"number": 1})
	require.Equal(t, http.StatusCreated, code)

	code, env := ts.do(t, "POST", "/api/tables", token, gin.H{"number": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "A mesa 1 já existe.", env.Message)
	assert.False(t, env.Status)

	code, env = ts.do(t, "POST", "/api/tables/999/occupy", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Mesa não encontrada.", env.Message)

	code, _ = ts.do(t, "POST", "/api/tables/1/release", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = ts.do(t, "POST", "/api/tables", token, gin.H{"number": -2, "capacity": 2})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, "GET", "/api/tables/abc/bill", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, "GET", "/api/tables", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := setupServer(t)

	code, _ := ts.do(t, "POST", "/register", "", gin.H{"name": "Bia", "email": "bia@bar.com", "password": "segredo1"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(t, "POST", "/register", "", gin.H{"name": "Bia", "email": "bia@bar.com", "password": "segredo1"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = ts.do(t, "POST", "/login", "", gin.H{"email": "bia@bar.com", "password": "errada"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := ts.do(t, "POST", "/login", "", gin.H{"email": "BIA@bar.com", "password": "segredo1"})
	require.Equal(t, http.StatusOK, code)
	login := decode[map[string]string](t, env.Data)
	token := login["token"]
	assert.Equal(t, models.RoleOwner, login["user_role"])

	code, env = ts.do(t, "GET", "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bia@bar.com", decode[map[string]interface{}](t, env.Data)["email"])

	code, _ = ts.do(t, "POST", "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, "GET", "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStaffWorksOnEmployerRestaurant(t *testing.T) {
	ts := setupServer(t)
	_, owner := ts.user(t, "dono@bar.com", models.RoleOwner)
	_, staff := ts.user(t, "garcom@bar.com", models.RoleStaff)

	code, _ := ts.do(t, "GET", "/api/employees", owner, nil)
	assert.Equal(t, http.StatusNotFound, code, "no company yet")

	code, _ = ts.do(t, "PUT", "/api/company", owner, gin.H{"name": "Bar Ltda", "document": "00.000.000/0001-00"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(t, "PUT", "/api/company", owner, gin.H{"name": "Bar do Zé Ltda"})
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, "POST", "/api/employees", owner, gin.H{"name": "Caio", "role": "chef"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env := ts.do(t, "POST", "/api/employees", owner, gin.H{"name": "Caio", "role": models.EmployeeWaiter, "email": "garcom@bar.com"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	emp := decode[models.Employee](t, env.Data)

	code, _ = ts.do(t, "POST", "/api/tables", owner, gin.H{"number": 7, "capacity": 2})
	require.Equal(t, http.StatusCreated, code)

	code, env = ts.do(t, "GET", "/api/tables", staff, nil)
	require.Equal(t, http.StatusOK, code)
	tables := decode[[]models.Table](t, env.Data)
	require.Len(t, tables, 1)
	assert.Equal(t, 7, tables[0].Number)

	code, _ = ts.do(t, "PUT", "/api/restaurant", staff, gin.H{"name": "Outro"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(t, "PUT", fmt.Sprintf("/api/employees/%d", emp.ID), owner, gin.H{"name": "Caio", "role": models.EmployeeWaiter, "active": false})
	require.Equal(t, http.StatusOK, code)
	code, env = ts.do(t, "GET", "/api/tables", staff, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.Table](t, env.Data), "inactive staff fall back to their own restaurant")

	code, _ = ts.do(t, "DELETE", fmt.Sprintf("/api/employees/%d", emp.ID), owner, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPublicMenu(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)

	ts.do(t, "POST", "/api/categories", token, gin.H{"name": "Bebidas"})
	ts.do(t, "POST", "/api/products", token, gin.H{"name": "Chopp", "price": 15, "category": "Bebidas"})
	ts.do(t, "POST", "/api/products", token, gin.H{"name": "Caipirinha", "price": 22, "category": "Bebidas", "available": false})
	ts.do(t, "POST", "/api/products", token, gin.H{"name": "Pão de queijo", "price": 8})

	code, _ := ts.do(t, "PUT", "/api/menu-publication", token, gin.H{"slug": "Bar do Zé"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, "PUT", "/api/menu-publication", token, gin.H{"slug": "bar-do-ze", "published": false})
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, "GET", "/menu/bar-do-ze", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, "PUT", "/api/menu-publication", token, gin.H{"slug": "bar-do-ze", "published": true})
	require.Equal(t, http.StatusOK, code)

	code, env := ts.do(t, "GET", "/menu/bar-do-ze", "", nil)
	require.Equal(t, http.StatusOK, code)
	menu := decode[struct {
		Restaurant string `json:"restaurant"`
		Sections   []struct {
			Category string           `json:"category"`
			Products []models.Product `json:"products"`
		} `json:"sections"`
	}](t, env.Data)
	require.Len(t, menu.Sections, 2)
	assert.Equal(t, "Bebidas", menu.Sections[0].Category)
	require.Len(t, menu.Sections[0].Products, 1)
	assert.Equal(t, "Chopp", menu.Sections[0].Products[0].Name)
	assert.Equal(t, "Outros", menu.Sections[1].Category)
}

func TestProductImageUpload(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)
	_, env := ts.do(t, "POST", "/api/products", token, gin.H{"name": "Chopp", "price": 15})
	p := decode[models.Product](t, env.Data)

	upload := func(filename string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		fw.Write([]byte("\x89PNG fake image"))
		require.NoError(t, mw.Close())

		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/products/%d/image", p.ID), &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, upload("virus.exe").Code)

	w := upload("chopp.png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env2 envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env2))
	updated := decode[models.Product](t, env2.Data)
	assert.Regexp(t, `^http://pos\.test/uploads/products/[0-9a-f-]+\.png$`, updated.ImageURL)
}

func TestSessionPrefs(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)

	code, _ := ts.do(t, "GET", "/api/session", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := ts.do(t, "GET", "/api/session", token, nil, controllers.SessionHeader, "tab-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.Default(), decode[session.Prefs](t, env.Data))

	code, _ = ts.do(t, "PUT", "/api/session", token, gin.H{"route": "/mesas", "status_filter": "occupied"}, controllers.SessionHeader, "tab-1")
	require.Equal(t, http.StatusOK, code)

	_, env = ts.do(t, "GET", "/api/session", token, nil, controllers.SessionHeader, "tab-1")
	assert.Equal(t, session.Prefs{Route: "/mesas", StatusFilter: "occupied", TableFilter: "all"}, decode[session.Prefs](t, env.Data))
}

func TestNotificationsStayWithinRestaurant(t *testing.T) {
	ts := setupServer(t)
	owner, token := ts.user(t, "dono@bar.com", models.RoleOwner)
	stranger, _ := ts.user(t, "outro@bar.com", models.RoleOwner)

	code, _ := ts.do(t, "POST", "/api/notifications", token, gin.H{"user_id": stranger.ID, "title": "Oi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, "POST", "/api/notifications", token, gin.H{"user_id": owner.ID, "title": "Estoque", "type": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := ts.do(t, "POST", "/api/notifications", token, gin.H{"user_id": owner.ID, "title": "Estoque baixo", "type": models.NotifyStock})
	require.Equal(t, http.StatusCreated, code)
	n := decode[models.Notification](t, env.Data)

	_, env = ts.do(t, "GET", "/api/notifications/unread-count", token, nil)
	assert.Equal(t, 1, decode[map[string]int](t, env.Data)["count"])

	code, _ = ts.do(t, "PATCH", fmt.Sprintf("/api/notifications/%d/read", n.ID), token, nil)
	require.Equal(t, http.StatusOK, code)

	_, env = ts.do(t, "GET", "/api/notifications/unread-count", token, nil)
	assert.Equal(t, 0, decode[map[string]int](t, env.Data)["count"])
}

func TestReports(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, "dono@bar.com", models.RoleOwner)

	code, env := ts.do(t, "GET", "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"floor"`)

	code, env = ts.do(t, "GET", "/api/reports/sales-by-day?days=3", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]gateway.DayTotal](t, env.Data), 3)

	code, _ = ts.do(t, "GET", "/api/reports/sales-by-day?days=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	req, _ := http.NewRequest("GET", "/api/reports/sales?format=pdf", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	req, _ = http.NewRequest("GET", "/api/reports/sales-by-day?days=7&format=png", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	code, _ = ts.do(t, "GET", "/api/reports/sales?start=2025-02-10&end=2025-02-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, "GET", "/api/debug/changes", token, nil)
	assert.Equal(t, http.StatusOK, code)
}
