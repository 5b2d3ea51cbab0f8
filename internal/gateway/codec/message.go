package codec

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

// DecodeMessageNode turns one located message element into a typed Message.
// Name extraction precedence: the type-hint attribute, then a direct-child
// RequestName element, then the element's own name with the Request suffix
// stripped. Failing all three is fatal.
func (c *Codec) DecodeMessageNode(el *etree.Element) (*model.Message, error) {
	name := messageName(el)
	if name == "" {
		return nil, errspkg.NewDecodeError("no message name", errspkg.ErrNoMessageName)
	}

	msg := model.NewMessage(name)

	shape, ok := c.registry.ResolveShape(name)
	if !ok {
		// Unrecognized but well-formed messages still reach the engine,
		// carrying only the raw name and parameter bag.
		msg.Untyped = true
		c.log.Debug("no shape registered for message", loggingpkg.LogFields{
			"message": name,
		})
	}

	if err := c.decodeParameters(el, msg, shape); err != nil {
		return nil, err
	}

	if idText, ok := childText(el, elemRequestID); ok && idText != "" {
		if id, err := uuid.Parse(idText); err == nil {
			msg.CorrelationID = &id
		} else {
			c.log.Debug("ignoring unparseable correlation id", loggingpkg.LogFields{
				"message":    name,
				"request_id": idText,
			})
		}
	}
	return msg, nil
}

func (c *Codec) decodeParameters(el *etree.Element, msg *model.Message, shape *registrypkg.Shape) error {
	params := childByTag(el, elemParameters)
	if params == nil {
		return nil
	}
	for _, pair := range params.ChildElements() {
		if pair.Tag != elemPair {
			continue
		}
		key, ok := childText(pair, elemKey)
		if !ok || key == "" {
			return errspkg.NewMalformedValue(pair.GetPath(), "parameter pair missing key", nil)
		}
		valueEl := childByTag(pair, elemValue)
		if valueEl == nil {
			return errspkg.NewMalformedValue(pair.GetPath(), "parameter pair missing value", nil)
		}
		v, err := c.Decode(hintOf(valueEl), valueEl)
		if err != nil {
			if c.SkipOptionalParams && shape != nil {
				if spec, ok := shape.Param(key); ok && spec.Optional {
					c.log.Info("skipping malformed optional parameter", loggingpkg.LogFields{
						"message":   msg.Name,
						"parameter": key,
					})
					continue
				}
			}
			return errspkg.NewDecodeError("parameter "+key, err)
		}
		msg.Params.Set(key, v)
	}
	return nil
}

// EncodeMessageNode writes msg into el in the shape DecodeMessageNode reads.
func (c *Codec) EncodeMessageNode(msg *model.Message, el *etree.Element) error {
	setHint(el, qualify(msg.Name+registrypkg.RequestSuffix))

	params := el.CreateElement(elemParameters)
	var encodeErr error
	msg.Params.Each(func(key string, v model.Value) bool {
		pair := params.CreateElement(elemPair)
		addChildText(pair, elemKey, key)
		if err := c.Encode(v, pair.CreateElement(elemValue)); err != nil {
			encodeErr = err
			return false
		}
		return true
	})
	if encodeErr != nil {
		return encodeErr
	}

	if msg.CorrelationID != nil {
		addChildText(el, elemRequestID, msg.CorrelationID.String())
	}
	addChildText(el, elemRequestName, msg.Name)
	return nil
}

// messageName extracts the declared message name from a message node, or ""
// when none of the three extraction means applies.
func messageName(el *etree.Element) string {
	if hint := hintOf(el); hint != "" {
		if name := strings.TrimSuffix(hint, registrypkg.RequestSuffix); name != "" {
			return name
		}
	}
	// Direct child only: a batched sub-message carries its own RequestName
	// and must not be mistaken for the outer message's.
	if name, ok := childText(el, elemRequestName); ok && name != "" {
		return name
	}
	if el.Tag != elemRequest {
		if name := strings.TrimSuffix(el.Tag, registrypkg.RequestSuffix); name != "" {
			return name
		}
	}
	return ""
}
