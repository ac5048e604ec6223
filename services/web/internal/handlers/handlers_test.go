package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/diagnosis/fitkeeda-web/internal/http/response"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/views"
)

const (
	testCookie = "sid"
	testSID    = "7b0f4a8e-5c1d-4d2e-9a51-3f6c2b8d9e10"
)

// fakeBackend records every call and answers from per-route handlers.
type fakeBackend struct {
	mu    sync.Mutex
	mux   *http.ServeMux
	calls []string
	srv   *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	f := &fakeBackend{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	for _, p := range []string{"/auth/verify", "/admin-auth/verify", "/coach-auth/verify"} {
		f.mux.HandleFunc("GET "+p, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]bool{"valid": true})
		})
	}
	return f
}

func (f *fakeBackend) handle(pattern string, h http.HandlerFunc) { f.mux.HandleFunc(pattern, h) }

func (f *fakeBackend) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func reply(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

type testApp struct {
	t       *testing.T
	backend *fakeBackend
	store   *session.MemoryStore
	tokens  *session.Tokens
	h       *Handler
	router  http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	backend := newFakeBackend(t)
	store := session.NewMemoryStore(time.Hour)
	tokens := session.NewTokens(store)
	renderer, err := views.New()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	client := api.NewClient(backend.srv.URL, 2*time.Second)
	verifier := guard.NewAPIVerifier(client, 0, time.Millisecond)

	h := New(Options{API: client, Store: store, Tokens: tokens, Views: renderer, SubmitLock: time.Minute})
	r := chi.NewRouter()
	r.Use(session.Manager{CookieName: testCookie, TTL: time.Hour}.Middleware)
	h.Mount(r, RouteOptions{Guards: Guards{
		Admin:    guard.New(guard.Admin, tokens, verifier, nil),
		Coach:    guard.New(guard.Coach, tokens, verifier, nil),
		Resident: guard.New(guard.Resident, tokens, verifier, nil),
	}})
	return &testApp{t: t, backend: backend, store: store, tokens: tokens, h: h, router: r}
}

func (a *testApp) sessionCtx() context.Context {
	return session.WithID(context.Background(), testSID)
}

func (a *testApp) login(role guard.Role, claims jwt.MapClaims) string {
	a.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	if err != nil {
		a.t.Fatal(err)
	}
	if err := a.tokens.Set(a.sessionCtx(), role.StorageKey, token); err != nil {
		a.t.Fatal(err)
	}
	return token
}

func (a *testApp) storedToken(role guard.Role) string {
	tok, _ := a.tokens.Get(a.sessionCtx(), role.StorageKey)
	return tok
}

func (a *testApp) do(method, target string, form url.Values, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: testCookie, Value: testSID})
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) get(target string) *httptest.ResponseRecorder { return a.do(http.MethodGet, target, nil, "") }

func (a *testApp) post(target string, form url.Values) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, target, form, "")
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func TestLogin_StoresTokenAndRedirectsHome(t *testing.T) {
	app := newTestApp(t)
	app.backend.handle("POST /coach-auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Phone != "9876543210" || req.Password != "secret" {
			reply(http.StatusUnauthorized, map[string]string{"message": "Invalid phone or password"})(w, r)
			return
		}
		reply(http.StatusOK, api.TokenResponse{AccessToken: "coach-token"})(w, r)
	})

	rr := app.post("/coach/login", url.Values{"phone": {" 9876543210 "}, "password": {"secret"}})
	expectRedirect(t, rr, "/coach")
	if got := app.storedToken(guard.Coach); got != "coach-token" {
		t.Fatalf("expected token to be stored, got %q", got)
	}

	// A logged-in coach visiting the login page is sent home.
	expectRedirect(t, app.get("/coach/login"), "/coach")
}

func TestLogin_RejectedCredentials(t *testing.T) {
	app := newTestApp(t)
	app.backend.handle("POST /auth/login", reply(http.StatusUnauthorized, map[string]string{"message": "Invalid phone or password"}))
	app.backend.handle("GET /societies", reply(http.StatusOK, []api.Society{{Name: "Green Meadows"}}))

	rr := app.post("/residents/auth-resident", url.Values{"phone": {"9876543210"}, "password": {"nope"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid phone or password") {
		t.Fatalf("expected backend message on page, got %s", rr.Body.String())
	}
	if app.storedToken(guard.Resident) != "" {
		t.Fatal("token stored after failed login")
	}
}

func TestLogout_ClearsOnlyThatRole(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.login(guard.Coach, jwt.MapClaims{"phone": "9876543210"})

	expectRedirect(t, app.post("/admin/logout", url.Values{}), "/admin/login")
	if app.storedToken(guard.Admin) != "" {
		t.Fatal("admin token survived logout")
	}
	if app.storedToken(guard.Coach) == "" {
		t.Fatal("coach token cleared by admin logout")
	}
}

func TestProtectedPage_BackendRejectsTokenMidPage(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("GET /societies", reply(http.StatusUnauthorized, map[string]string{"message": "jwt expired"}))

	expectRedirect(t, app.get("/admin/societies"), "/admin/login")
	if app.storedToken(guard.Admin) != "" {
		t.Fatal("rejected token was not purged")
	}
}

func TestProtectedPage_BackendDownRendersErrorPage(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"phone": "9876543210", "fullName": "Asha Rao"})
	app.backend.handle("GET /bookings", reply(http.StatusInternalServerError, map[string]string{"message": "mongo timeout"}))

	rr := app.get("/residents/bookings")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "temporarily unavailable") {
		t.Fatalf("expected explicit error page, got %s", body)
	}
	if strings.Contains(body, "mongo timeout") {
		t.Fatal("backend detail leaked to the page")
	}
	if app.storedToken(guard.Resident) == "" {
		t.Fatal("token purged on a server error")
	}
}

func TestResidentBookings_OnlyOwnRows(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"phone": "9876543210"})
	var query string
	app.backend.handle("GET /bookings", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("number")
		reply(http.StatusOK, []api.Booking{
			{Name: "Asha", Number: "9876543210", Sport: "Yoga", Price: 1500},
			{Name: "Ravi", Number: "9000000000", Sport: "Karate", Price: 1200},
		})(w, r)
	})

	rr := app.get("/residents/bookings")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if query != "9876543210" {
		t.Fatalf("expected bookings filtered by phone, got %q", query)
	}
	if !strings.Contains(rr.Body.String(), "Yoga") || strings.Contains(rr.Body.String(), "Karate") {
		t.Fatalf("unexpected rows: %s", rr.Body.String())
	}
}

func walkAddSociety(t *testing.T, app *testApp) {
	t.Helper()
	if rr := app.get("/admin/societies/new"); rr.Code != http.StatusOK {
		t.Fatalf("expected first step, got %d", rr.Code)
	}
	if rr := app.post("/admin/societies/new", url.Values{"action": {"next"}, "name": {"  "}, "area": {"Baner"}}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected blank name to block advance, got %d", rr.Code)
	}
	if rr := app.post("/admin/societies/new", url.Values{"action": {"next"}, "name": {"Green Meadows"}, "area": {"Baner"}}); rr.Code != http.StatusOK {
		t.Fatalf("advance: %d", rr.Code)
	}
	if rr := app.post("/admin/societies/new", url.Values{"add": {"amenities"}, "item:amenities": {"Pool"}}); rr.Code != http.StatusOK {
		t.Fatalf("add amenity: %d", rr.Code)
	}
}

func TestWizard_AddSocietySubmits(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	var created api.Society
	var idemKey string
	app.backend.handle("POST /societies", func(w http.ResponseWriter, r *http.Request) {
		idemKey = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&created)
		reply(http.StatusCreated, created)(w, r)
	})
	app.backend.handle("GET /societies", reply(http.StatusOK, []api.Society{{Name: "Green Meadows", Area: "Baner"}}))

	walkAddSociety(t, app)
	expectRedirect(t, app.post("/admin/societies/new", url.Values{"action": {"submit"}}), "/admin/societies")

	if created.Name != "Green Meadows" || created.Area != "Baner" || len(created.Amenities) != 1 || created.Amenities[0] != "Pool" {
		t.Fatalf("unexpected payload: %+v", created)
	}
	if idemKey == "" {
		t.Fatal("create sent without an idempotency key")
	}

	rr := app.get("/admin/societies")
	if !strings.Contains(rr.Body.String(), "Society Green Meadows added.") {
		t.Fatalf("expected flash after redirect, got %s", rr.Body.String())
	}
	// The wizard starts over after a successful submit.
	if rr := app.get("/admin/societies/new"); !strings.Contains(rr.Body.String(), "Society details") {
		t.Fatal("expected wizard reset to first step")
	}
}

func TestWizard_SubmitFailureKeepsAnswers(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("POST /societies", reply(http.StatusInternalServerError, map[string]string{"message": "boom"}))

	walkAddSociety(t, app)
	rr := app.post("/admin/societies/new", url.Values{"action": {"submit"}})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Pool") || !strings.Contains(rr.Body.String(), "submit again") {
		t.Fatalf("expected answers kept with a retry hint, got %s", rr.Body.String())
	}
	if app.storedToken(guard.Admin) == "" {
		t.Fatal("token purged on submit failure")
	}
}

func TestWizard_SubmitRejectedWhileInFlight(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("POST /societies", reply(http.StatusCreated, api.Society{}))

	walkAddSociety(t, app)
	release, ok, err := app.store.Acquire(context.Background(), testSID, "submit:add-society", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	defer release()

	rr := app.post("/admin/societies/new", url.Values{"action": {"submit"}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if n := app.backend.called("POST /societies"); n != 0 {
		t.Fatalf("backend called %d times during an in-flight submit", n)
	}
}

func TestCoachAttendanceJSON_Window(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		wantStatus int
		wantCode   string
		wantMarks  int
	}{
		{"inside window", time.Date(2025, 3, 14, 10, 5, 0, 0, time.Local), http.StatusOK, "", 1},
		{"outside window", time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local), http.StatusConflict, response.CodeOutsideWindow, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			app.h.now = func() time.Time { return tt.now }
			app.login(guard.Coach, jwt.MapClaims{"phone": "9876543210"})
			app.backend.handle("GET /coaches", reply(http.StatusOK, []api.Coach{{ID: "c1", Name: "Meera", Phone: "9876543210"}}))
			app.backend.handle("GET /attendance/today/c1", reply(http.StatusOK, []api.AttendanceRecord{
				{SessionID: "s1", CoachID: "c1", Status: api.StatusAbsent, Session: &api.Session{ID: "s1", Sport: "Yoga", Slot: "10:00 AM"}},
			}))
			var marked api.MarkAttendance
			app.backend.handle("POST /attendance/mark", func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&marked)
				w.WriteHeader(http.StatusOK)
			})

			rr := app.do(http.MethodPost, "/api/coach/attendance/s1/toggle", nil, "application/json")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantCode != "" {
				var body response.ErrorResponse
				json.NewDecoder(rr.Body).Decode(&body)
				if body.Code != tt.wantCode {
					t.Fatalf("expected code %s, got %+v", tt.wantCode, body)
				}
			}
			if n := app.backend.called("POST /attendance/mark"); n != tt.wantMarks {
				t.Fatalf("expected %d mark calls, got %d", tt.wantMarks, n)
			}
			if tt.wantMarks > 0 && marked.Status != api.StatusPresent {
				t.Fatalf("expected present, got %+v", marked)
			}
		})
	}
}

func TestCoachAttendanceJSON_RequiresLogin(t *testing.T) {
	app := newTestApp(t)
	rr := app.do(http.MethodGet, "/api/coach/attendance", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestBookingPayment_UsesServerHeldAmount(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"id": "r1", "phone": "9876543210", "fullName": "Asha Rao", "societyName": "Green Meadows"})
	app.backend.handle("POST /prospective", reply(http.StatusCreated, map[string]bool{"success": true}))
	app.backend.handle("GET /sessions", reply(http.StatusOK, []api.Session{
		{ID: "s1", Apartment: "Green Meadows", Sport: "Yoga", Slot: "06:30 AM", Plan: "Monthly", Price: 1500, Months: 1},
	}))
	var orderAmount float64
	app.backend.handle("POST /payments/create-order", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]float64
		json.NewDecoder(r.Body).Decode(&body)
		orderAmount = body["amount"]
		reply(http.StatusOK, api.Order{ID: "order_1", Amount: orderAmount})(w, r)
	})
	app.backend.handle("POST /payments/verify", reply(http.StatusOK, map[string]bool{"success": true}))
	var booked api.Booking
	app.backend.handle("POST /bookings", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&booked)
		reply(http.StatusCreated, booked)(w, r)
	})

	if rr := app.post("/residents/book", url.Values{"action": {"next"}, "name": {"Asha Rao"}, "number": {"9876543210"}}); rr.Code != http.StatusOK {
		t.Fatalf("step 1: %d %s", rr.Code, rr.Body.String())
	}
	if n := app.backend.called("POST /prospective"); n != 1 {
		t.Fatalf("expected prospective client capture, got %d", n)
	}
	if rr := app.post("/residents/book", url.Values{"action": {"next"}, "sessionId": {"s1"}}); rr.Code != http.StatusOK {
		t.Fatalf("step 2: %d", rr.Code)
	}
	expectRedirect(t, app.post("/residents/book", url.Values{"action": {"submit"}, "price": {"1"}}), "/residents/book/pay")
	if orderAmount != 1500 {
		t.Fatalf("order amount must come from the session, got %v", orderAmount)
	}

	rr := app.post("/residents/book/pay", url.Values{"order_id": {"order_1"}, "payment_id": {"pay_1"}, "signature": {"sig"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rr.Code, rr.Body.String())
	}
	if booked.PaymentStatus != "success" || booked.Price != 1500 || booked.Apartment != "Green Meadows" || booked.Sport != "Yoga" {
		t.Fatalf("unexpected booking: %+v", booked)
	}

	// The pending booking is consumed.
	expectRedirect(t, app.get("/residents/book/pay"), "/residents/book")
}

func TestBookingPayment_MismatchedOrderRejected(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"phone": "9876543210"})
	raw, _ := json.Marshal(pendingBooking{OrderID: "order_1", Booking: api.Booking{Price: 1500}})
	if err := app.store.Set(context.Background(), testSID, pendingBookingKey, raw); err != nil {
		t.Fatal(err)
	}

	rr := app.post("/residents/book/pay", url.Values{"order_id": {"order_other"}, "payment_id": {"pay_1"}, "signature": {"sig"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if n := app.backend.called("POST /payments/verify"); n != 0 {
		t.Fatal("verification attempted for a foreign order")
	}
}

func walkAddCoach(t *testing.T, app *testApp) {
	t.Helper()
	details := url.Values{"action": {"next"}, "name": {"Meera Iyer"}, "email": {"meera@example.com"}, "phone": {"9876543210"}, "location": {"Baner"}}
	if rr := app.post("/admin/coaches/new", details); rr.Code != http.StatusOK {
		t.Fatalf("details: %d %s", rr.Code, rr.Body.String())
	}
	if rr := app.post("/admin/coaches/new", url.Values{"add": {"sports"}, "item:sports": {"Yoga"}}); rr.Code != http.StatusOK {
		t.Fatalf("add sport: %d", rr.Code)
	}
	if rr := app.post("/admin/coaches/new", url.Values{"action": {"next"}}); rr.Code != http.StatusOK {
		t.Fatalf("sports: %d", rr.Code)
	}
}

func TestAddCoach_CredentialRetryKeepsSingleProfile(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("POST /coaches", reply(http.StatusCreated, api.Coach{ID: "c1", Name: "Meera Iyer"}))
	registers := 0
	app.backend.handle("POST /coach-auth/register", func(w http.ResponseWriter, r *http.Request) {
		registers++
		if registers == 1 {
			reply(http.StatusInternalServerError, map[string]string{"message": "boom"})(w, r)
			return
		}
		reply(http.StatusCreated, map[string]bool{"success": true})(w, r)
	})

	walkAddCoach(t, app)
	creds := url.Values{"action": {"submit"}, "password": {"secret1"}, "confirmPassword": {"secret1"}}
	if rr := app.post("/admin/coaches/new", creds); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when credentials fail, got %d", rr.Code)
	}
	expectRedirect(t, app.post("/admin/coaches/new", creds), "/admin/coaches")

	if n := app.backend.called("POST /coaches"); n != 1 {
		t.Fatalf("coach profile created %d times", n)
	}
	if n := app.backend.called("POST /coach-auth/register"); n != 2 {
		t.Fatalf("expected credentials to be retried once, got %d calls", n)
	}

	// A new coach after the success starts a fresh attempt and creates a profile again.
	walkAddCoach(t, app)
	expectRedirect(t, app.post("/admin/coaches/new", creds), "/admin/coaches")
	if n := app.backend.called("POST /coaches"); n != 2 {
		t.Fatalf("expected a second profile for the next coach, got %d", n)
	}
}

func TestBookingPayment_RetryReusesIdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"phone": "9876543210"})
	raw, _ := json.Marshal(pendingBooking{OrderID: "order_1", Booking: api.Booking{Name: "Asha Rao", Sport: "Yoga", Slot: "06:30 AM", Price: 1500}})
	if err := app.store.Set(context.Background(), testSID, pendingBookingKey, raw); err != nil {
		t.Fatal(err)
	}
	app.backend.handle("POST /payments/verify", reply(http.StatusOK, map[string]bool{"success": true}))
	var keys []string
	app.backend.handle("POST /bookings", func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) == 1 {
			// Stored, but the answer never made it back.
			reply(http.StatusGatewayTimeout, map[string]string{"message": "upstream timeout"})(w, r)
			return
		}
		reply(http.StatusCreated, api.Booking{ID: "b1"})(w, r)
	})

	confirm := url.Values{"order_id": {"order_1"}, "payment_id": {"pay_1"}, "signature": {"sig"}}
	if rr := app.post("/residents/book/pay", confirm); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on the lost response, got %d", rr.Code)
	}
	if rr := app.post("/residents/book/pay", confirm); rr.Code != http.StatusOK {
		t.Fatalf("retry: %d %s", rr.Code, rr.Body.String())
	}
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("retry of the same order sent different keys: %v", keys)
	}
}

func TestWizard_RetryReusesIdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	var keys []string
	app.backend.handle("POST /societies", func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) == 1 {
			reply(http.StatusServiceUnavailable, map[string]string{"message": "busy"})(w, r)
			return
		}
		reply(http.StatusCreated, api.Society{ID: "soc-1"})(w, r)
	})

	walkAddSociety(t, app)
	if rr := app.post("/admin/societies/new", url.Values{"action": {"submit"}}); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	expectRedirect(t, app.post("/admin/societies/new", url.Values{"action": {"submit"}}), "/admin/societies")

	walkAddSociety(t, app)
	expectRedirect(t, app.post("/admin/societies/new", url.Values{"action": {"submit"}}), "/admin/societies")

	if len(keys) != 3 || keys[0] != keys[1] {
		t.Fatalf("expected the retry to reuse its key, got %v", keys)
	}
	if keys[2] == keys[0] {
		t.Fatal("a new society reused the previous attempt's key")
	}
}

func TestAdminDeleteBooking(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("GET /bookings", reply(http.StatusOK, []api.Booking{{ID: "b1", Name: "Asha Rao", Number: "9876543210", Sport: "Yoga"}}))
	app.backend.handle("DELETE /bookings/b1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	app.backend.handle("DELETE /bookings/gone", reply(http.StatusNotFound, map[string]string{"message": "not found"}))

	rr := app.get("/admin/bookings")
	if !strings.Contains(rr.Body.String(), `action="/admin/bookings/b1/delete"`) {
		t.Fatalf("expected a delete form per booking, got %s", rr.Body.String())
	}

	expectRedirect(t, app.post("/admin/bookings/b1/delete", url.Values{}), "/admin/bookings")
	if n := app.backend.called("DELETE /bookings/b1"); n != 1 {
		t.Fatalf("expected one delete call, got %d", n)
	}
	if rr := app.get("/admin/bookings"); !strings.Contains(rr.Body.String(), "Booking deleted.") {
		t.Fatal("expected a confirmation flash")
	}

	expectRedirect(t, app.post("/admin/bookings/gone/delete", url.Values{}), "/admin/bookings")
	if rr := app.get("/admin/bookings"); !strings.Contains(rr.Body.String(), "already removed") {
		t.Fatal("expected a flash for a booking that no longer exists")
	}
}

func TestAdminDeleteBooking_RequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	expectRedirect(t, app.post("/admin/bookings/b1/delete", url.Values{}), "/admin/login")
	if n := app.backend.called("DELETE /bookings/b1"); n != 0 {
		t.Fatal("delete reached the backend without a login")
	}
}

func TestAdminCoachSchedule_GroupsSessionsByCoach(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Admin, jwt.MapClaims{"email": "ops@fitkeeda.in"})
	app.backend.handle("GET /coaches", reply(http.StatusOK, []api.Coach{
		{ID: "c1", Name: "Meera Iyer", Phone: "9876543210"},
		{ID: "c2", Name: "Vikram Shah", Phone: "9123456780"},
	}))
	app.backend.handle("GET /sessions", reply(http.StatusOK, []api.Session{
		{ID: "s1", Apartment: "Green Meadows", Sport: "Yoga", Slot: "06:30 AM", AssignedCoach: &api.CoachRef{ID: "c1", Name: "Meera Iyer"}},
		{ID: "s2", Apartment: "Lake View", Sport: "Zumba", Slot: "07:00 PM"},
	}))

	body := app.get("/admin/coaches/schedule").Body.String()
	for _, want := range []string{"Meera Iyer", "Green Meadows", "Vikram Shah", "No sessions assigned"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(body, "Lake View") {
		t.Error("unassigned session listed under a coach")
	}

	if body := app.get("/admin/coaches/schedule?q=vikram").Body.String(); strings.Contains(body, "Green Meadows") {
		t.Error("search kept another coach's sessions")
	}
}

func TestResidentPlans_OnlyOwnSociety(t *testing.T) {
	app := newTestApp(t)
	app.login(guard.Resident, jwt.MapClaims{"phone": "9876543210", "societyName": "Green Meadows"})
	var apartment string
	app.backend.handle("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		apartment = r.URL.Query().Get("apartment")
		reply(http.StatusOK, []api.Session{
			{ID: "s1", Apartment: "Green Meadows", Sport: "Yoga", Slot: "06:30 AM", Plan: "Monthly", Price: 1500, Months: 1},
			{ID: "s2", Apartment: "Lake View", Sport: "Zumba", Slot: "07:00 PM", Plan: "Monthly", Price: 900, Months: 1},
		})(w, r)
	})

	rr := app.get("/residents/plans")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if apartment != "Green Meadows" {
		t.Fatalf("expected sessions filtered by society, got %q", apartment)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Yoga") || !strings.Contains(body, "₹1500") {
		t.Fatalf("expected own society's plan, got %s", body)
	}
	if strings.Contains(body, "Zumba") {
		t.Fatal("listed a session from another society")
	}
}
