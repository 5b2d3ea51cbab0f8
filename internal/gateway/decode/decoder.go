// Package decode locates the message payload inside an arbitrary inbound
// envelope and turns it into a typed Message. Location runs an ordered list
// of structural search strategies, most specific first; the first strategy
// yielding a match wins. The ordering exists because a batched request
// legally nests message nodes of the same shape as the outer one.
package decode

import (
	"strings"

	"github.com/beevik/etree"

	codecpkg "github.com/recordwire/recordgate/internal/gateway/codec"
	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

// Decoder turns envelope bytes into typed Messages. It is stateless per
// call and safe for concurrent use.
type Decoder struct {
	codec *codecpkg.Codec
	log   loggingpkg.ServiceLogger
}

// New constructs a Decoder over the given registry.
func New(reg *registrypkg.Registry, log loggingpkg.ServiceLogger) (*Decoder, error) {
	c, err := codecpkg.New(reg, log)
	if err != nil {
		return nil, err
	}
	return &Decoder{codec: c, log: log}, nil
}

// Codec exposes the value codec the decoder was built with.
func (d *Decoder) Codec() *codecpkg.Codec {
	return d.codec
}

// Decode parses the envelope, locates the message node and builds a typed
// Message. Every failure is a DecodeError.
func (d *Decoder) Decode(envelope []byte) (*model.Message, error) {
	if len(envelope) == 0 {
		return nil, errspkg.NewDecodeError("empty body", errspkg.ErrEmptyEnvelope)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelope); err != nil {
		return nil, errspkg.NewDecodeError("unparseable XML", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errspkg.NewDecodeError("empty document", errspkg.ErrEmptyEnvelope)
	}

	node := locateMessageNode(root)
	if node == nil {
		return nil, errspkg.NewDecodeError("no message node", errspkg.ErrNoMessageNode)
	}

	return d.codec.DecodeMessageNode(node)
}

// searchStrategy is one structural search over the parsed tree. Strategies
// run in declaration order; the first non-nil result wins.
type searchStrategy func(root *etree.Element) *etree.Element

var searchStrategies = []searchStrategy{
	findExecuteChild,
	findUnderBodyOutsideCollections,
	findAnyRequestElement,
}

func locateMessageNode(root *etree.Element) *etree.Element {
	for _, strategy := range searchStrategies {
		if node := strategy(root); node != nil {
			return node
		}
	}
	return nil
}

// findExecuteChild returns the request element that is a direct child of the
// well-known Execute operation node.
func findExecuteChild(root *etree.Element) *etree.Element {
	execute := findFirst(root, func(el *etree.Element) bool {
		return el.Tag == "Execute"
	}, nil)
	if execute == nil {
		return nil
	}
	for _, child := range execute.ChildElements() {
		if child.Tag == "request" {
			return child
		}
	}
	return nil
}

// findUnderBodyOutsideCollections returns the first message-looking element
// under the body, skipping the subtree of any batched-collection value so a
// nested sub-message is never selected in place of the top-level one.
func findUnderBodyOutsideCollections(root *etree.Element) *etree.Element {
	body := findFirst(root, func(el *etree.Element) bool {
		return el.Tag == "Body"
	}, nil)
	if body == nil {
		return nil
	}
	return findFirst(body, looksLikeMessage, isCollectionNode)
}

// findAnyRequestElement is the last resort: any element literally named
// "request" anywhere in the document.
func findAnyRequestElement(root *etree.Element) *etree.Element {
	if root.Tag == "request" {
		return root
	}
	return findFirst(root, func(el *etree.Element) bool {
		return el.Tag == "request"
	}, nil)
}

func looksLikeMessage(el *etree.Element) bool {
	if el.Tag == "request" {
		return true
	}
	return el.Tag != registrypkg.RequestSuffix && strings.HasSuffix(el.Tag, registrypkg.RequestSuffix)
}

func isCollectionNode(el *etree.Element) bool {
	for _, attr := range el.Attr {
		if attr.Key != "type" {
			continue
		}
		hint := attr.Value
		if i := strings.IndexByte(hint, ':'); i >= 0 {
			hint = hint[i+1:]
		}
		return hint == "MessageCollection"
	}
	return false
}

// findFirst walks the subtree of root in document order and returns the
// first descendant matching want. Subtrees matching prune (and the pruned
// node itself) are not descended into. root itself is not a candidate.
func findFirst(root *etree.Element, want func(*etree.Element) bool, prune func(*etree.Element) bool) *etree.Element {
	for _, child := range root.ChildElements() {
		if prune != nil && prune(child) {
			continue
		}
		if want(child) {
			return child
		}
		if found := findFirst(child, want, prune); found != nil {
			return found
		}
	}
	return nil
}
