package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"expense-tracker/internal/audit"
	"expense-tracker/internal/auth"
	"expense-tracker/internal/expense"
	"expense-tracker/internal/handlers"
	"expense-tracker/internal/models"
	"expense-tracker/internal/session"
	"expense-tracker/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// APITestSuite drives the JSON API through the router.
type APITestSuite struct {
	suite.Suite
	db     *storage.DB
	router http.Handler
}

func (suite *APITestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db

	credentials, err := auth.NewCredentials(db, auth.BcryptHasher{Cost: bcrypt.MinCost})
	require.NoError(suite.T(), err)

	sessions := session.NewAuthority(db, db, time.Hour, zap.NewNop())
	expenses := expense.NewService(db, audit.NewRecorder(nil))
	h := handlers.NewHandlers(credentials, sessions, expenses, zap.NewNop(), false)

	r := chi.NewRouter()
	h.Routes(r, nil)
	suite.router = r
}

func (suite *APITestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *APITestSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	suite.router.ServeHTTP(rr, req)
	return rr
}

func (suite *APITestSuite) decode(rr *httptest.ResponseRecorder, v any) {
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func (suite *APITestSuite) errorOf(rr *httptest.ResponseRecorder) handlers.ErrorResponse {
	var resp handlers.ErrorResponse
	suite.decode(rr, &resp)
	return resp
}

func (suite *APITestSuite) login(username, password string) string {
	rr := suite.do("POST", "/register", "", map[string]string{"username": username, "password": password})
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	rr = suite.do("POST", "/login", "", map[string]string{"username": username, "password": password})
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	for _, c := range rr.Result().Cookies() {
		if c.Name == handlers.SessionCookieName {
			return c.Value
		}
	}
	suite.T().Fatal("login did not set a session cookie")
	return ""
}

func (suite *APITestSuite) addExpense(token string, amount float64, category, description string) int64 {
	rr := suite.do("POST", "/add", token, map[string]any{"amount": amount, "category": category, "description": description})
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	var resp handlers.MessageResponse
	suite.decode(rr, &resp)
	assert.Equal(suite.T(), "Expense added", resp.Message)
	require.NotNil(suite.T(), resp.ID)
	return *resp.ID
}

func (suite *APITestSuite) list(token string) []models.Expense {
	rr := suite.do("GET", "/list", token, nil)
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	var expenses []models.Expense
	suite.decode(rr, &expenses)
	return expenses
}

func (suite *APITestSuite) TestRegister() {
	rr := suite.do("POST", "/register", "", map[string]string{"username": "alice", "password": "pw1"})
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
	assert.Contains(suite.T(), rr.Header().Get("Content-Type"), "application/json")

	var resp handlers.MessageResponse
	suite.decode(rr, &resp)
	assert.Equal(suite.T(), "User created", resp.Message)

	rr = suite.do("POST", "/register", "", map[string]string{"username": "alice", "password": "other"})
	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)
	assert.Equal(suite.T(), "Username already exists", suite.errorOf(rr).Error)
}

func (suite *APITestSuite) TestRegisterValidation() {
	tests := []struct {
		name string
		body any
	}{
		{"missing password", map[string]string{"username": "alice"}},
		{"missing username", map[string]string{"password": "pw"}},
		{"empty object", map[string]string{}},
		{"not json", "username=alice"},
		{"two objects", `{"username":"a","password":"b"}{"username":"c","password":"d"}`},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			rr := suite.do("POST", "/register", "", tt.body)
			assert.Equal(suite.T(), http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(suite.T(), suite.errorOf(rr).Error)
		})
	}

	count, err := suite.db.UserCount(context.Background())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *APITestSuite) TestRegisterValidationDetails() {
	rr := suite.do("POST", "/register", "", map[string]string{"username": "alice"})
	resp := suite.errorOf(rr)
	assert.Equal(suite.T(), "Validation failed", resp.Error)
	assert.Contains(suite.T(), resp.Details, "Password")
}

func (suite *APITestSuite) TestLogin() {
	rr := suite.do("POST", "/register", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(suite.T(), http.StatusOK, rr.Code)

	rr = suite.do("POST", "/login", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(suite.T(), http.StatusOK, rr.Code)

	var resp handlers.MessageResponse
	suite.decode(rr, &resp)
	assert.Equal(suite.T(), "Logged in", resp.Message)
	assert.NoError(suite.T(), auth.ValidateSessionToken(resp.Token))

	cookies := rr.Result().Cookies()
	require.Len(suite.T(), cookies, 1)
	assert.Equal(suite.T(), resp.Token, cookies[0].Value)
	assert.True(suite.T(), cookies[0].HttpOnly)
}

func (suite *APITestSuite) TestLoginFailures() {
	rr := suite.do("POST", "/register", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(suite.T(), http.StatusOK, rr.Code)

	wrong := suite.do("POST", "/login", "", map[string]string{"username": "alice", "password": "nope"})
	unknown := suite.do("POST", "/login", "", map[string]string{"username": "bob", "password": "pw1"})

	for _, rr := range []*httptest.ResponseRecorder{wrong, unknown} {
		assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)
		assert.Equal(suite.T(), "Invalid credentials", suite.errorOf(rr).Error)
		assert.Empty(suite.T(), rr.Result().Cookies())
	}
	assert.Equal(suite.T(), wrong.Body.String(), unknown.Body.String(),
		"wrong password and unknown user are indistinguishable")
}

func (suite *APITestSuite) TestProtectedRoutesRequireSession() {
	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/logout"},
		{"POST", "/add"},
		{"GET", "/list"},
		{"POST", "/edit"},
		{"POST", "/delete"},
	}
	for _, rt := range routes {
		suite.Run(rt.method+" "+rt.path, func() {
			for _, token := range []string{"", "garbage", strings.Repeat("A", 43)} {
				rr := suite.do(rt.method, rt.path, token, map[string]any{"id": 1, "amount": 1, "category": "c", "description": "d"})
				assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)
				assert.Equal(suite.T(), "Unauthorized", suite.errorOf(rr).Error)
			}
		})
	}

	count, err := suite.db.CountAuditEntries(context.Background(), 1, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *APITestSuite) TestBearerToken() {
	suite.login("alice", "pw1")
	rr := suite.do("POST", "/login", "", map[string]string{"username": "alice", "password": "pw1"})
	var resp handlers.MessageResponse
	suite.decode(rr, &resp)

	req := httptest.NewRequest("GET", "/list", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	out := httptest.NewRecorder()
	suite.router.ServeHTTP(out, req)
	assert.Equal(suite.T(), http.StatusOK, out.Code)
}

func (suite *APITestSuite) TestExpenseLifecycle() {
	token := suite.login("alice", "pw1")

	assert.Empty(suite.T(), suite.list(token))
	assert.Equal(suite.T(), "[]\n", suite.do("GET", "/list", token, nil).Body.String())

	id := suite.addExpense(token, 100, "food", "pizza")

	rr := suite.do("POST", "/edit", token, map[string]any{"id": id, "amount": 150, "description": "updated pizza"})
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())
	var msg handlers.MessageResponse
	suite.decode(rr, &msg)
	assert.Equal(suite.T(), "Expense updated", msg.Message)

	expenses := suite.list(token)
	require.Len(suite.T(), expenses, 1)
	assert.Equal(suite.T(), models.Expense{ID: id, Amount: 150, Category: "food", Description: "updated pizza"}, expenses[0])

	rr = suite.do("POST", "/delete", token, map[string]any{"id": id})
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())
	suite.decode(rr, &msg)
	assert.Equal(suite.T(), "Expense deleted", msg.Message)
	assert.Empty(suite.T(), suite.list(token))

	rr = suite.do("POST", "/delete", token, map[string]any{"id": id})
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)

	user, err := suite.db.GetUserByUsername(context.Background(), "alice")
	require.NoError(suite.T(), err)
	entries, err := suite.db.ListAuditEntries(context.Background(), user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), entries, 3)
	assert.Equal(suite.T(), models.ActionAdd, entries[0].Action)
	assert.Equal(suite.T(), models.ActionEdit, entries[1].Action)
	assert.Equal(suite.T(), models.ActionDelete, entries[2].Action)
}

func (suite *APITestSuite) TestListPreservesInsertionOrder() {
	token := suite.login("alice", "pw1")
	suite.addExpense(token, 1, "a", "first")
	suite.addExpense(token, 2, "b", "second")
	suite.addExpense(token, 3, "c", "third")

	expenses := suite.list(token)
	require.Len(suite.T(), expenses, 3)
	assert.Equal(suite.T(), "first", expenses[0].Description)
	assert.Equal(suite.T(), "third", expenses[2].Description)
}

func (suite *APITestSuite) TestAddValidation() {
	token := suite.login("alice", "pw1")

	bodies := []any{
		map[string]any{"category": "food", "description": "no amount"},
		map[string]any{"amount": 1, "description": "no category"},
		map[string]any{"amount": 1, "category": "food"},
		map[string]any{"amount": "ten", "category": "food", "description": "x"},
	}
	for _, body := range bodies {
		rr := suite.do("POST", "/add", token, body)
		assert.Equal(suite.T(), http.StatusBadRequest, rr.Code, rr.Body.String())
	}
	assert.Empty(suite.T(), suite.list(token))
}

func (suite *APITestSuite) TestAddAcceptsZeroAndNegativeAmounts() {
	token := suite.login("alice", "pw1")
	suite.addExpense(token, 0, "refund", "zero")
	suite.addExpense(token, -20, "refund", "negative")

	expenses := suite.list(token)
	require.Len(suite.T(), expenses, 2)
	assert.Equal(suite.T(), 0.0, expenses[0].Amount)
	assert.Equal(suite.T(), -20.0, expenses[1].Amount)
}

func (suite *APITestSuite) TestEditAndDeleteRequireID() {
	token := suite.login("alice", "pw1")

	rr := suite.do("POST", "/edit", token, map[string]any{"amount": 1})
	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)

	rr = suite.do("POST", "/delete", token, map[string]any{})
	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)
}

func (suite *APITestSuite) TestOwnershipIsolation() {
	alice := suite.login("alice", "pw1")
	bob := suite.login("bob", "pw2")

	id := suite.addExpense(alice, 42, "rent", "flat")

	assert.Empty(suite.T(), suite.list(bob))

	rr := suite.do("POST", "/edit", bob, map[string]any{"id": id, "description": "stolen"})
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)
	assert.Equal(suite.T(), "Not found", suite.errorOf(rr).Error)

	rr = suite.do("POST", "/delete", bob, map[string]any{"id": id})
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)

	missing := suite.do("POST", "/delete", bob, map[string]any{"id": id + 1000})
	assert.Equal(suite.T(), rr.Body.String(), missing.Body.String(),
		"foreign and missing ids look the same")

	expenses := suite.list(alice)
	require.Len(suite.T(), expenses, 1)
	assert.Equal(suite.T(), "flat", expenses[0].Description)
}

func (suite *APITestSuite) TestLogout() {
	token := suite.login("alice", "pw1")

	rr := suite.do("GET", "/logout", token, nil)
	require.Equal(suite.T(), http.StatusOK, rr.Code)
	var msg handlers.MessageResponse
	suite.decode(rr, &msg)
	assert.Equal(suite.T(), "Logged out", msg.Message)

	cookies := rr.Result().Cookies()
	require.Len(suite.T(), cookies, 1)
	assert.Equal(suite.T(), "", cookies[0].Value)
	assert.Less(suite.T(), cookies[0].MaxAge, 0)

	rr = suite.do("GET", "/list", token, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)
}

func (suite *APITestSuite) TestLogoutEndsOnlyThatSession() {
	first := suite.login("alice", "pw1")
	rr := suite.do("POST", "/login", "", map[string]string{"username": "alice", "password": "pw1"})
	var resp handlers.MessageResponse
	suite.decode(rr, &resp)
	second := resp.Token

	rr = suite.do("GET", "/logout", first, nil)
	require.Equal(suite.T(), http.StatusOK, rr.Code)

	assert.Equal(suite.T(), http.StatusUnauthorized, suite.do("GET", "/list", first, nil).Code)
	assert.Equal(suite.T(), http.StatusOK, suite.do("GET", "/list", second, nil).Code)
}

func (suite *APITestSuite) TestUnauthenticatedResponseIsJSON() {
	req := httptest.NewRequest("GET", "/list", nil)
	rr := httptest.NewRecorder()
	suite.router.ServeHTTP(rr, req)
	assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)
	assert.Contains(suite.T(), rr.Header().Get("Content-Type"), "application/json")
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestCORS(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	credentials, err := auth.NewCredentials(db, auth.BcryptHasher{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	h := handlers.NewHandlers(credentials, session.NewAuthority(db, db, 0, nil), expense.NewService(db, audit.NewRecorder(nil)), nil, false)

	r := chi.NewRouter()
	h.Routes(r, []string{"http://app.example.com"})

	req := httptest.NewRequest("OPTIONS", "/list", nil)
	req.Header.Set("Origin", "http://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "http://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
