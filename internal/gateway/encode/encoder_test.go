package encode

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	reg, err := registrypkg.New(registrypkg.Builtin())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	e, err := New(reg, loggingpkg.Nop())
	if err != nil {
		t.Fatalf("building encoder: %v", err)
	}
	return e
}

func parseEnvelope(t *testing.T, envelope []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelope); err != nil {
		t.Fatalf("encoder emitted unparseable XML: %v\n%s", err, envelope)
	}
	return doc
}

// findByTag walks the document for the first element with the local name.
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

func typeAttr(el *etree.Element) string {
	for _, attr := range el.Attr {
		if attr.Key == "type" {
			return attr.Value
		}
	}
	return ""
}

func TestEncodeWhoAmIResult(t *testing.T) {
	e := newTestEncoder(t)

	userID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	req := model.NewMessage("WhoAmI")
	res := model.NewResult()
	res.Params.Set("UserId", model.GUID(userID))

	out, err := e.Encode(res, req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	doc := parseEnvelope(t, out)
	result := findByTag(doc.Root(), "ExecuteResult")
	if result == nil {
		t.Fatalf("expected ExecuteResult wrapper in %s", out)
	}
	if got := typeAttr(result); got != "a:WhoAmIResponse" {
		t.Fatalf("expected primary-namespace annotation a:WhoAmIResponse, got %q", got)
	}

	userEl := findByTag(result, "UserId")
	if userEl == nil {
		t.Fatal("expected UserId element in result")
	}
	if strings.TrimSpace(userEl.Text()) != userID.String() {
		t.Fatalf("expected UserId text %s, got %q", userID, userEl.Text())
	}
	if got := typeAttr(userEl); got != "guid" {
		t.Fatalf("expected guid hint on UserId, got %q", got)
	}
}

func TestExtendedNamespacePrefix(t *testing.T) {
	e := newTestEncoder(t)

	req := model.NewMessage("RetrieveVersion")
	res := model.NewResult()
	res.Params.Set("Version", model.String("9.2.1"))

	out, err := e.Encode(res, req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	result := findByTag(parseEnvelope(t, out).Root(), "ExecuteResult")
	if got := typeAttr(result); got != "b:RetrieveVersionResponse" {
		t.Fatalf("expected extended-namespace annotation, got %q", got)
	}
}

func TestUnknownShapeDefaultsToPrimaryPrefix(t *testing.T) {
	e := newTestEncoder(t)

	req := model.NewMessage("Frobnicate")
	out, err := e.Encode(model.NewResult(), req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	result := findByTag(parseEnvelope(t, out).Root(), "ExecuteResult")
	if got := typeAttr(result); got != "a:FrobnicateResponse" {
		t.Fatalf("expected primary prefix for unknown shape, got %q", got)
	}
}

// TestBatchResultAnnotation checks that each inner per-item result is
// re-annotated with the message name from the request's collection entry at
// the matching index.
func TestBatchResultAnnotation(t *testing.T) {
	e := newTestEncoder(t)

	batch := model.MessageCollection{Messages: []*model.Message{
		model.NewMessage("Create"),
		model.NewMessage("Update"),
		model.NewMessage("Delete"),
	}}
	req := model.NewMessage("BatchExecute")
	req.Params.Set("Messages", batch)

	res := model.NewResult()
	for range batch.Messages {
		res.Items = append(res.Items, model.NewResult())
	}
	res.Items[0].Params.Set("id", model.GUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")))

	out, err := e.Encode(res, req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	responses := findByTag(parseEnvelope(t, out).Root(), "Responses")
	if responses == nil {
		t.Fatal("expected Responses container")
	}
	items := responses.ChildElements()
	if len(items) != 3 {
		t.Fatalf("expected 3 result items, got %d", len(items))
	}

	want := []string{"a:CreateResponse", "a:UpdateResponse", "a:DeleteResponse"}
	for i, item := range items {
		result := findByTag(item, "Result")
		if result == nil {
			t.Fatalf("item %d: missing Result element", i)
		}
		if got := typeAttr(result); got != want[i] {
			t.Fatalf("item %d: expected annotation %q, got %q", i, want[i], got)
		}
	}
}

func TestFaultEnvelope(t *testing.T) {
	e := newTestEncoder(t)

	out := e.Fault("entity does not exist")
	doc := parseEnvelope(t, out)

	fault := findByTag(doc.Root(), "Fault")
	if fault == nil {
		t.Fatal("expected Fault element")
	}
	code := findByTag(fault, "faultcode")
	if code == nil || code.Text() != "Server" {
		t.Fatalf("expected faultcode Server, got %v", code)
	}
	msg := findByTag(fault, "faultstring")
	if msg == nil || msg.Text() != "entity does not exist" {
		t.Fatalf("expected faultstring with message, got %v", msg)
	}
}

// TestEncodeZeroValueResult covers results built as bare struct literals
// instead of via NewResult: a nil parameter bag must encode as empty, not
// panic.
func TestEncodeZeroValueResult(t *testing.T) {
	e := newTestEncoder(t)

	out, err := e.Encode(&model.Result{}, model.NewMessage("WhoAmI"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	result := findByTag(parseEnvelope(t, out).Root(), "ExecuteResult")
	if result == nil {
		t.Fatalf("expected ExecuteResult wrapper in %s", out)
	}
	if got := typeAttr(result); got != "a:WhoAmIResponse" {
		t.Fatalf("expected annotation a:WhoAmIResponse, got %q", got)
	}
}

func TestEncodeRequiresResultAndRequest(t *testing.T) {
	e := newTestEncoder(t)

	if _, err := e.Encode(nil, model.NewMessage("WhoAmI")); err == nil {
		t.Fatal("expected error for nil result")
	}
	if _, err := e.Encode(model.NewResult(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}
