package guard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
)

type fakeTokens struct {
	mu     sync.Mutex
	values map[string]string
	clears int
}

func newFakeTokens(kv ...string) *fakeTokens {
	f := &fakeTokens{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		f.values[kv[i]] = kv[i+1]
	}
	return f
}

func (f *fakeTokens) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeTokens) Set(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = token
	return nil
}

func (f *fakeTokens) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	delete(f.values, key)
	return nil
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func verifyOK(calls *int) guard.Verifier {
	return guard.VerifierFunc(func(context.Context, guard.Role, string) error {
		*calls++
		return nil
	})
}

func verifyFail(err error) guard.Verifier {
	return guard.VerifierFunc(func(context.Context, guard.Role, string) error { return err })
}

var children = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("protected content"))
})

func serve(t *testing.T, g *guard.Guard, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	g.Middleware(children).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestResident_NoTokenOnProtectedPath_RedirectsOnce(t *testing.T) {
	calls := 0
	g := guard.New(guard.Resident, newFakeTokens(), verifyOK(&calls), nil)

	rr := serve(t, g, "/residents/bookings")

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/residents/auth-resident" {
		t.Fatalf("expected redirect to resident login, got %q", loc)
	}
	if rr.Body.String() == "protected content" {
		t.Fatal("protected children rendered without a token")
	}
	if calls != 0 {
		t.Fatalf("verification must not run without a token, ran %d times", calls)
	}
}

func TestAdmin_LoginPathWithValidToken_RedirectsHome(t *testing.T) {
	calls := 0
	tokens := newFakeTokens("admin_token", "tok")
	g := guard.New(guard.Admin, tokens, verifyOK(&calls), nil)

	rr := serve(t, g, "/admin/login")

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/admin" {
		t.Fatalf("expected 303 to /admin, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if rr.Body.String() == "protected content" {
		t.Fatal("login page content written before redirect")
	}
	if calls != 1 {
		t.Fatalf("expected one verification, got %d", calls)
	}
}

func TestDecide_Table(t *testing.T) {
	rejected := &api.Error{Status: http.StatusUnauthorized}
	tests := []struct {
		name     string
		path     string
		token    string
		verifier guard.Verifier
		state    guard.State
		location string
		purged   bool
	}{
		{"login no token", "/coach/login", "", verifyFail(nil), guard.StateRenderLogin, "", false},
		{"login trailing slash", "/coach/login/", "", verifyFail(nil), guard.StateRenderLogin, "", false},
		{"login bad token", "/coach/login", "t", verifyFail(rejected), guard.StateRenderLogin, "", true},
		{"login good token", "/coach/login", "t", verifyFail(nil), guard.StateRedirectHome, "/coach", false},
		{"protected no token", "/coach/sessions", "", verifyFail(nil), guard.StateRedirectLogin, "/coach/login", false},
		{"protected bad token", "/coach/sessions", "t", verifyFail(rejected), guard.StateRedirectLogin, "/coach/login", true},
		{"protected network error", "/coach/sessions", "t", verifyFail(errors.New("dial tcp: refused")), guard.StateRedirectLogin, "/coach/login", true},
		{"protected good token", "/coach/sessions", "t", verifyFail(nil), guard.StateRenderProtected, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := newFakeTokens("coach_token", tt.token)
			pub := &recordingPublisher{}
			g := guard.New(guard.Coach, tokens, tt.verifier, pub)

			d, err := g.Decide(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if d.State != tt.state || d.Location != tt.location || d.Purged != tt.purged {
				t.Fatalf("got %+v, want state=%s location=%q purged=%v", d, tt.state, tt.location, tt.purged)
			}
			stored, _ := tokens.Get(context.Background(), "coach_token")
			if tt.purged {
				if stored != "" {
					t.Fatal("rejected token was not cleared")
				}
				if len(pub.subjects) != 1 || pub.subjects[0] != events.AuthTokenPurged {
					t.Fatalf("expected purge event, got %v", pub.subjects)
				}
			} else if stored != tt.token {
				t.Fatalf("token changed unexpectedly: %q", stored)
			}
		})
	}
}

func TestDecide_Idempotent(t *testing.T) {
	calls := 0
	g := guard.New(guard.Resident, newFakeTokens("token", "tok"), verifyOK(&calls), nil)

	first, err := g.Decide(context.Background(), "/residents/bookings")
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Decide(context.Background(), "/residents/bookings")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
	if calls != 2 {
		t.Fatalf("expected verification on every evaluation, got %d", calls)
	}
}

func TestDecide_CancelledDuringVerify_DiscardsResult(t *testing.T) {
	tokens := newFakeTokens("admin_token", "tok")
	ctx, cancel := context.WithCancel(context.Background())
	v := guard.VerifierFunc(func(context.Context, guard.Role, string) error {
		cancel()
		return context.Canceled
	})
	g := guard.New(guard.Admin, tokens, v, nil)

	_, err := g.Decide(ctx, "/admin/societies")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tokens.clears != 0 {
		t.Fatal("token purged after the request was abandoned")
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/societies", nil).WithContext(ctx)
	g.Middleware(children).ServeHTTP(rr, req)
	if rr.Body.Len() != 0 || rr.Header().Get("Location") != "" {
		t.Fatal("abandoned request still produced a response")
	}
}

func TestMiddleware_ExposesVerifiedToken(t *testing.T) {
	g := guard.New(guard.Coach, newFakeTokens("coach_token", "tok"), verifyFail(nil), nil)
	var seen string
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = guard.TokenFrom(r.Context(), guard.Coach)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/coach", nil))
	if seen != "tok" {
		t.Fatalf("expected verified token in context, got %q", seen)
	}
}

func TestAPIVerifier_RetriesTransientOnly(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantErr  bool
		wantHits int
	}{
		{"ok first time", []int{200}, false, 1},
		{"recovers after 502", []int{502, 200}, false, 2},
		{"rejected is final", []int{401, 200}, true, 1},
		{"gives up after retries", []int{503, 503, 503, 200}, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth/verify" || r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
				}
				w.WriteHeader(tt.statuses[hits])
				hits++
			}))
			defer srv.Close()

			v := guard.NewAPIVerifier(api.NewClient(srv.URL, time.Second), 2, time.Millisecond)
			err := v.Verify(context.Background(), guard.Resident, "tok")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if hits != tt.wantHits {
				t.Fatalf("expected %d calls, got %d", tt.wantHits, hits)
			}
		})
	}
}

func TestAPIMiddleware_AnswersJSON401(t *testing.T) {
	g := guard.New(guard.Coach, newFakeTokens(), verifyFail(nil), nil)
	rr := httptest.NewRecorder()
	g.APIMiddleware(children).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/coach/attendance", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON body, got %q", ct)
	}
	if rr.Header().Get("Location") != "" {
		t.Fatal("API guard must not redirect")
	}
}
