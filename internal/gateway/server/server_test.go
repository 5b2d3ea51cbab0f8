package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/recordwire/recordgate/internal/gateway/config"
	enginepkg "github.com/recordwire/recordgate/internal/gateway/engine"
	eventspkg "github.com/recordwire/recordgate/internal/gateway/events"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	metricspkg "github.com/recordwire/recordgate/internal/gateway/metrics"
	"github.com/recordwire/recordgate/internal/gateway/model"
	oauthpkg "github.com/recordwire/recordgate/internal/gateway/oauth"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

const whoAmIEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <Execute xmlns="http://schemas.recordwire.dev/2011/contracts/services">
      <request i:type="a:WhoAmIRequest"
               xmlns:a="http://schemas.recordwire.dev/2011/contracts"
               xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
        <a:Parameters/>
      </request>
    </Execute>
  </s:Body>
</s:Envelope>`

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		ListenAddress: ":0",
		ExecutePath:   "/services/execute",
		MaxBodyBytes:  1 << 20,
		TokenEnabled:  false,
	}
}

func newTestServer(t *testing.T, cfg *configpkg.Config, exec enginepkg.Executor, tokens *oauthpkg.TokenService) *Server {
	t.Helper()
	reg, err := registrypkg.New(registrypkg.Builtin())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	srv, err := New(cfg, reg, exec, nil, tokens, nil, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("building server: %v", err)
	}
	return srv
}

func whoAmIEngine(userID uuid.UUID) enginepkg.Executor {
	return enginepkg.Func(func(_ context.Context, msg *model.Message, sec enginepkg.SecurityContext) (*model.Result, error) {
		res := model.NewResult()
		id := userID
		if id == uuid.Nil {
			id = sec.UserID
		}
		res.Params.Set("UserId", model.GUID(id))
		return res, nil
	})
}

func postExecute(t *testing.T, srv *Server, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/services/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func parseXML(t *testing.T, body []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		t.Fatalf("response is not well-formed XML: %v\n%s", err, body)
	}
	return doc
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func TestExecuteSuccess(t *testing.T) {
	userID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	srv := newTestServer(t, testConfig(), whoAmIEngine(userID), nil)

	rec := postExecute(t, srv, whoAmIEnvelope, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("expected XML content type, got %q", ct)
	}

	doc := parseXML(t, rec.Body.Bytes())
	result := findByTag(doc.Root(), "ExecuteResult")
	if result == nil {
		t.Fatalf("expected ExecuteResult in response:\n%s", rec.Body)
	}
	userEl := findByTag(result, "UserId")
	if userEl == nil || strings.TrimSpace(userEl.Text()) != userID.String() {
		t.Fatalf("expected UserId %s in response:\n%s", userID, rec.Body)
	}
}

func TestExecuteDecodeFault(t *testing.T) {
	srv := newTestServer(t, testConfig(), whoAmIEngine(uuid.Nil), nil)

	cases := []struct {
		name string
		body string
	}{
		{"unparseable", "<Envelope><Body"},
		{"no message node", "<Envelope><Body><Noise/></Body></Envelope>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postExecute(t, srv, tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			fault := findByTag(parseXML(t, rec.Body.Bytes()).Root(), "Fault")
			if fault == nil {
				t.Fatalf("expected fault envelope:\n%s", rec.Body)
			}
			if code := findByTag(fault, "faultcode"); code == nil || code.Text() != "Server" {
				t.Fatalf("expected faultcode Server:\n%s", rec.Body)
			}
		})
	}
}

func TestExecuteEngineFault(t *testing.T) {
	failing := enginepkg.Func(func(context.Context, *model.Message, enginepkg.SecurityContext) (*model.Result, error) {
		return nil, errors.New("record does not exist")
	})
	srv := newTestServer(t, testConfig(), failing, nil)

	rec := postExecute(t, srv, whoAmIEnvelope, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	fault := findByTag(parseXML(t, rec.Body.Bytes()).Root(), "Fault")
	if fault == nil {
		t.Fatalf("expected fault envelope:\n%s", rec.Body)
	}
	msg := findByTag(fault, "faultstring")
	if msg == nil || !strings.Contains(msg.Text(), "record does not exist") {
		t.Fatalf("expected engine message in faultstring:\n%s", rec.Body)
	}
}

func TestBearerTokenIdentity(t *testing.T) {
	tokens, err := oauthpkg.NewTokenService("test-secret", time.Hour, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("building token service: %v", err)
	}

	var seen enginepkg.SecurityContext
	capture := enginepkg.Func(func(_ context.Context, _ *model.Message, sec enginepkg.SecurityContext) (*model.Result, error) {
		seen = sec
		return model.NewResult(), nil
	})
	srv := newTestServer(t, testConfig(), capture, tokens)

	token, _, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	rec := postExecute(t, srv, whoAmIEnvelope, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	if seen.UserID == uuid.Nil {
		t.Fatal("expected derived caller identity")
	}
	if seen.UserID != uuid.NewSHA1(uuid.NameSpaceOID, []byte("alice")) {
		t.Fatalf("identity not derived from subject: %s", seen.UserID)
	}

	t.Run("invalid token falls back to anonymous", func(t *testing.T) {
		header := http.Header{"Authorization": {"Bearer not-a-token"}}
		rec := postExecute(t, srv, whoAmIEnvelope, header)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seen.UserID != uuid.Nil || seen.Token != "" {
			t.Fatalf("expected zero identity, got %+v", seen)
		}
	})
}

func TestServiceDescription(t *testing.T) {
	srv := newTestServer(t, testConfig(), whoAmIEngine(uuid.Nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/services/execute", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := parseXML(t, rec.Body.Bytes())
	if doc.Root().Tag != "service" {
		t.Fatalf("expected service description, got root %q", doc.Root().Tag)
	}
}

func TestStatusAndHealth(t *testing.T) {
	srv := newTestServer(t, testConfig(), whoAmIEngine(uuid.Nil), nil)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 status, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected status body: %s", rec.Body)
	}
}

// TestPanicProducesFaultEnvelope checks the recovery path: even a panicking
// engine must leave the client with a parseable fault body, never an empty
// reply.
func TestPanicProducesFaultEnvelope(t *testing.T) {
	panicking := enginepkg.Func(func(context.Context, *model.Message, enginepkg.SecurityContext) (*model.Result, error) {
		panic("engine state corrupted")
	})
	srv := newTestServer(t, testConfig(), panicking, nil)

	rec := postExecute(t, srv, whoAmIEnvelope, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	fault := findByTag(parseXML(t, rec.Body.Bytes()).Root(), "Fault")
	if fault == nil {
		t.Fatalf("expected fault envelope after panic:\n%s", rec.Body)
	}
	if code := findByTag(fault, "faultcode"); code == nil || code.Text() != "Server" {
		t.Fatalf("expected faultcode Server:\n%s", rec.Body)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, m := range family.Metric {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

// TestFailureCountersStayDistinct checks that each failure class increments
// only its own counter: an encode failure must not show up as an engine
// fault.
func TestFailureCountersStayDistinct(t *testing.T) {
	newServerWithMetrics := func(t *testing.T, exec enginepkg.Executor) (*Server, *prometheus.Registry) {
		t.Helper()
		promReg := prometheus.NewRegistry()
		m := metricspkg.New(promReg)
		reg, err := registrypkg.New(registrypkg.Builtin())
		if err != nil {
			t.Fatalf("building registry: %v", err)
		}
		srv, err := New(testConfig(), reg, exec, nil, nil, m, loggingpkg.Nop())
		if err != nil {
			t.Fatalf("building server: %v", err)
		}
		return srv, promReg
	}

	t.Run("engine failure", func(t *testing.T) {
		failing := enginepkg.Func(func(context.Context, *model.Message, enginepkg.SecurityContext) (*model.Result, error) {
			return nil, errors.New("boom")
		})
		srv, promReg := newServerWithMetrics(t, failing)

		postExecute(t, srv, whoAmIEnvelope, nil)

		if got := counterValue(t, promReg, "recordgate_engine_failures_total"); got != 1 {
			t.Fatalf("expected 1 engine failure, got %v", got)
		}
		if got := counterValue(t, promReg, "recordgate_encode_failures_total"); got != 0 {
			t.Fatalf("expected 0 encode failures, got %v", got)
		}
	})

	t.Run("encode failure", func(t *testing.T) {
		// A nil result with a nil error fails in the encoder, not the engine.
		nilResult := enginepkg.Func(func(context.Context, *model.Message, enginepkg.SecurityContext) (*model.Result, error) {
			return nil, nil
		})
		srv, promReg := newServerWithMetrics(t, nilResult)

		rec := postExecute(t, srv, whoAmIEnvelope, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}

		if got := counterValue(t, promReg, "recordgate_encode_failures_total"); got != 1 {
			t.Fatalf("expected 1 encode failure, got %v", got)
		}
		if got := counterValue(t, promReg, "recordgate_engine_failures_total"); got != 0 {
			t.Fatalf("expected 0 engine failures, got %v", got)
		}
	})
}

// TestStatusReportsRecentExecutions drives a request through the audit bus
// and waits for it to show up on the status surface.
func TestStatusReportsRecentExecutions(t *testing.T) {
	bus := eventspkg.NewBus("recordgate.executed", loggingpkg.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	reg, err := registrypkg.New(registrypkg.Builtin())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	srv, err := New(testConfig(), reg, whoAmIEngine(uuid.Nil), bus, nil, nil, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("building server: %v", err)
	}

	rec := postExecute(t, srv, whoAmIEnvelope, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	// Audit delivery is asynchronous; poll until the event lands.
	router := srv.Router()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status := httptest.NewRecorder()
		router.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/status", nil))
		if strings.Contains(status.Body.String(), `"message_name":"WhoAmI"`) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("executed message never reached the status surface: %s", status.Body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	reg, err := registrypkg.New(registrypkg.Builtin())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	exec := whoAmIEngine(uuid.Nil)

	if _, err := New(nil, reg, exec, nil, nil, nil, loggingpkg.Nop()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := New(testConfig(), reg, nil, nil, nil, nil, loggingpkg.Nop()); err == nil {
		t.Fatal("expected error for nil engine")
	}
	if _, err := New(testConfig(), reg, exec, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
