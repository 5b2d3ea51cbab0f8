// Package encode serializes typed results back into the wire envelope shape
// legacy clients parse, including the namespace-qualified type annotation the
// engine's native result omits.
package encode

import (
	"strings"

	"github.com/beevik/etree"

	codecpkg "github.com/recordwire/recordgate/internal/gateway/codec"
	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

const (
	nsSoap    = "http://schemas.xmlsoap.org/soap/envelope/"
	nsXSI     = "http://www.w3.org/2001/XMLSchema-instance"
	nsService = "http://schemas.recordwire.dev/2011/contracts/services"

	// ResponseSuffix is appended to the originating message name to form
	// the declared result type annotation.
	ResponseSuffix = "Response"
)

// namespacePrefix selects the wire prefix for a catalog namespace. Two
// catalogs exist today; anything unrecognized gets the primary prefix. A
// third catalog namespace needs a new entry here.
type prefixEntry struct {
	substring string
	prefix    string
}

var namespacePrefixes = []prefixEntry{
	{substring: "extended", prefix: codecpkg.PrefixExtended},
	{substring: "contracts", prefix: codecpkg.PrefixPrimary},
}

func namespacePrefix(namespace string) string {
	for _, entry := range namespacePrefixes {
		if strings.Contains(namespace, entry.substring) {
			return entry.prefix
		}
	}
	return codecpkg.PrefixPrimary
}

// Encoder serializes results and faults. Stateless per call, safe for
// concurrent use.
type Encoder struct {
	codec    *codecpkg.Codec
	registry *registrypkg.Registry
	log      loggingpkg.ServiceLogger
}

// New constructs an Encoder over the given registry.
func New(reg *registrypkg.Registry, log loggingpkg.ServiceLogger) (*Encoder, error) {
	c, err := codecpkg.New(reg, log)
	if err != nil {
		return nil, err
	}
	return &Encoder{codec: c, registry: reg, log: log}, nil
}

// Encode serializes res as the response to req. The declared result name is
// derived from the request because the engine's result omits it; the wrapper
// annotation is namespace-qualified per the shape's catalog.
func (e *Encoder) Encode(res *model.Result, req *model.Message) ([]byte, error) {
	if res == nil {
		return nil, errspkg.NewEncodeError("missing result", errspkg.ErrNoResult)
	}
	if req == nil {
		return nil, errspkg.NewEncodeError("missing originating request", errspkg.ErrNoResult)
	}

	name := res.Name
	if name == "" {
		name = req.Name + ResponseSuffix
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	envelope := doc.CreateElement("s:Envelope")
	envelope.CreateAttr("xmlns:s", nsSoap)
	body := envelope.CreateElement("s:Body")
	response := body.CreateElement("ExecuteResponse")
	response.CreateAttr("xmlns", nsService)
	result := response.CreateElement("ExecuteResult")
	result.CreateAttr("xmlns:i", nsXSI)
	result.CreateAttr("xmlns:"+codecpkg.PrefixPrimary, registrypkg.NamespacePrimary)
	result.CreateAttr("xmlns:"+codecpkg.PrefixExtended, registrypkg.NamespaceExtended)
	result.CreateAttr("i:type", e.resultAnnotation(req.Name, name))

	if err := e.encodeResultBody(res, req, result); err != nil {
		return nil, err
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, errspkg.NewEncodeError("serializing envelope", err)
	}
	return out, nil
}

// resultAnnotation qualifies the declared result name with the prefix of the
// catalog namespace the originating shape belongs to.
func (e *Encoder) resultAnnotation(requestName, resultName string) string {
	prefix := codecpkg.PrefixPrimary
	if shape, ok := e.registry.ResolveShape(requestName); ok {
		prefix = namespacePrefix(shape.Namespace)
	}
	return prefix + ":" + resultName
}

func (e *Encoder) encodeResultBody(res *model.Result, req *model.Message, parent *etree.Element) error {
	var encodeErr error
	res.Params.Each(func(key string, v model.Value) bool {
		if err := e.codec.Encode(v, parent.CreateElement(key)); err != nil {
			encodeErr = errspkg.NewEncodeError("result parameter "+key, err)
			return false
		}
		return true
	})
	if encodeErr != nil {
		return encodeErr
	}

	if len(res.Items) > 0 {
		return e.encodeBatchItems(res, req, parent)
	}
	return nil
}

// encodeBatchItems writes per-item sub-results, re-attaching the declared
// message name each item is missing: the engine does not populate it on
// batch items, so it is derived from the request's collection entry at the
// matching index.
func (e *Encoder) encodeBatchItems(res *model.Result, req *model.Message, parent *etree.Element) error {
	requests := batchRequests(req)
	responses := parent.CreateElement("Responses")
	for i, item := range res.Items {
		itemEl := responses.CreateElement("ResultItem")
		resultEl := itemEl.CreateElement("Result")

		name := item.Name
		requestName := req.Name
		if i < len(requests) {
			requestName = requests[i].Name
			if name == "" {
				name = requests[i].Name + ResponseSuffix
			}
		}
		if name == "" {
			name = req.Name + ResponseSuffix
			e.log.Debug("batch item without matching request entry", loggingpkg.LogFields{
				"index": i,
			})
		}
		resultEl.CreateAttr("i:type", e.resultAnnotation(requestName, name))

		var encodeErr error
		item.Params.Each(func(key string, v model.Value) bool {
			if err := e.codec.Encode(v, resultEl.CreateElement(key)); err != nil {
				encodeErr = errspkg.NewEncodeError("batch item parameter "+key, err)
				return false
			}
			return true
		})
		if encodeErr != nil {
			return encodeErr
		}
	}
	return nil
}

// batchRequests returns the messages of the request's collection parameter,
// in submission order.
func batchRequests(req *model.Message) []*model.Message {
	var messages []*model.Message
	req.Params.Each(func(_ string, v model.Value) bool {
		if coll, ok := v.(model.MessageCollection); ok {
			messages = coll.Messages
			return false
		}
		return true
	})
	return messages
}

// Fault emits the minimal fault envelope: faultcode Server plus the message.
// Real clients only detect failure for this protocol version, so no richer
// detail is carried. The return is always well-formed XML.
func (e *Encoder) Fault(message string) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	envelope := doc.CreateElement("s:Envelope")
	envelope.CreateAttr("xmlns:s", nsSoap)
	body := envelope.CreateElement("s:Body")
	fault := body.CreateElement("s:Fault")
	fault.CreateElement("faultcode").SetText("Server")
	fault.CreateElement("faultstring").SetText(message)

	out, err := doc.WriteToBytes()
	if err != nil {
		// Cannot happen with an in-memory writer; keep the contract anyway.
		return []byte(`<s:Envelope xmlns:s="` + nsSoap + `"><s:Body><s:Fault><faultcode>Server</faultcode><faultstring>internal error</faultstring></s:Fault></s:Body></s:Envelope>`)
	}
	return out
}
