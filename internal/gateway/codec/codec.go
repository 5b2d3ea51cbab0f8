// Package codec translates between wire XML nodes and the closed set of
// typed values the protocol carries. Decoding dispatches on exact type-hint
// identifiers in a fixed priority order; encoding is the structural inverse,
// emitting the same node shapes and hints real clients consume.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

// Codec decodes and encodes protocol values. It is stateless per call and
// safe for concurrent use; the registry it reads is immutable.
type Codec struct {
	registry *registrypkg.Registry
	log      loggingpkg.ServiceLogger

	// SkipOptionalParams makes a malformed value on a declared-optional
	// parameter non-fatal to the containing message.
	SkipOptionalParams bool
}

// New constructs a Codec.
func New(reg *registrypkg.Registry, log loggingpkg.ServiceLogger) (*Codec, error) {
	if reg == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &Codec{registry: reg, log: log}, nil
}

// Decode turns one wire value element into a typed Value, dispatched by the
// type-hint identifier. Hints are tried against the closed table in priority
// order: composites first, then scalars, then enum resolution, then string.
func (c *Codec) Decode(hint string, el *etree.Element) (model.Value, error) {
	switch stripPrefix(hint) {
	case hintRecordRef:
		return c.decodeRecordRef(el)
	case hintRecordSet:
		return c.decodeRecordSet(el)
	case hintRecord:
		return c.decodeRecord(el)
	case hintQuery:
		return c.decodeQuery(el)
	case hintFilter:
		return c.decodeFilter(el)
	case hintCondition:
		return c.decodeCondition(el)
	case hintOptionValue:
		return c.decodeOptionValue(el)
	case hintMoney:
		return c.decodeMoney(el)
	case hintColumnSelection:
		return c.decodeColumnSelection(el)
	case hintMessageCollection:
		return c.decodeMessageCollection(el)
	case hintBatchSettings:
		return c.decodeBatchSettings(el)
	case hintGUID:
		return c.decodeGUID(el)
	case hintInt, hintLong:
		return c.decodeInt(el)
	case hintBool:
		return c.decodeBool(el)
	case hintDateTime:
		return c.decodeTimestamp(el)
	case hintDecimal:
		return c.decodeDecimal(el)
	case hintString, "":
		return model.String(el.Text()), nil
	default:
		return c.decodeEnumOrString(stripPrefix(hint), el)
	}
}

func (c *Codec) decodeRecordRef(el *etree.Element) (model.Value, error) {
	typeName, ok := childText(el, elemTypeName)
	if !ok || typeName == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "record reference missing TypeName", nil)
	}
	idText, ok := childText(el, elemID)
	if !ok || idText == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "record reference missing Id", errspkg.ErrMissingIdentity)
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "record reference Id is not a guid", err)
	}
	return model.RecordRef{TypeName: typeName, ID: id}, nil
}

func (c *Codec) decodeRecord(el *etree.Element) (model.Value, error) {
	typeName, ok := childText(el, elemTypeName)
	if !ok || typeName == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "record missing TypeName", nil)
	}

	rec := model.Record{TypeName: typeName, Attributes: model.NewBag()}

	if idText, ok := childText(el, elemID); ok && idText != "" {
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, errspkg.NewMalformedValue(el.GetPath(), "record Id is not a guid", err)
		}
		rec.ID = &id
	}

	// Attribute walk reads direct pair children of the record's own
	// Attributes container only; attributes of records nested inside a
	// record-set attribute must never leak into this bag.
	attrs := childByTag(el, elemAttributes)
	if attrs == nil {
		return rec, nil
	}
	for _, pair := range attrs.ChildElements() {
		if pair.Tag != elemPair {
			continue
		}
		key, ok := childText(pair, elemKey)
		if !ok || key == "" {
			return nil, errspkg.NewMalformedValue(pair.GetPath(), "attribute pair missing key", nil)
		}
		valueEl := childByTag(pair, elemValue)
		if valueEl == nil {
			return nil, errspkg.NewMalformedValue(pair.GetPath(), "attribute pair missing value", nil)
		}
		v, err := c.Decode(hintOf(valueEl), valueEl)
		if err != nil {
			return nil, err
		}
		rec.Attributes.Set(key, v)
	}
	return rec, nil
}

func (c *Codec) decodeRecordSet(el *etree.Element) (model.Value, error) {
	set := model.RecordSet{}
	if typeName, ok := childText(el, elemTypeName); ok {
		set.TypeName = typeName
	}
	records := childByTag(el, elemRecords)
	if records == nil {
		return set, nil
	}
	for _, recEl := range records.ChildElements() {
		if recEl.Tag != elemRecord {
			continue
		}
		v, err := c.decodeRecord(recEl)
		if err != nil {
			return nil, err
		}
		set.Records = append(set.Records, v.(model.Record))
	}
	return set, nil
}

func (c *Codec) decodeQuery(el *etree.Element) (model.Value, error) {
	typeName, ok := childText(el, elemTypeName)
	if !ok || typeName == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "query missing TypeName", nil)
	}
	q := model.Query{TypeName: typeName, Columns: model.ColumnSelection{All: true}}

	if colsEl := childByTag(el, elemColumns); colsEl != nil {
		cols, err := c.decodeColumnSelection(colsEl)
		if err != nil {
			return nil, err
		}
		q.Columns = cols.(model.ColumnSelection)
	}
	if limitText, ok := childText(el, elemLimit); ok && limitText != "" {
		limit, err := strconv.ParseInt(limitText, 10, 64)
		if err != nil {
			return nil, errspkg.NewMalformedValue(el.GetPath(), "query limit is not an integer", err)
		}
		q.Limit = &limit
	}
	if filterEl := childByTag(el, elemFilter); filterEl != nil {
		f, err := c.decodeFilter(filterEl)
		if err != nil {
			return nil, err
		}
		filter := f.(model.Filter)
		q.Filter = &filter
	}
	return q, nil
}

func (c *Codec) decodeColumnSelection(el *etree.Element) (model.Value, error) {
	if allText, ok := childText(el, elemAllColumns); ok {
		all, err := strconv.ParseBool(allText)
		if err != nil {
			return nil, errspkg.NewMalformedValue(el.GetPath(), "AllColumns is not a boolean", err)
		}
		if all {
			return model.ColumnSelection{All: true}, nil
		}
	}
	sel := model.ColumnSelection{}
	if cols := childByTag(el, elemColumns); cols != nil {
		for _, colEl := range cols.ChildElements() {
			if colEl.Tag == elemColumn {
				sel.Columns = append(sel.Columns, strings.TrimSpace(colEl.Text()))
			}
		}
	}
	return sel, nil
}

func (c *Codec) decodeFilter(el *etree.Element) (model.Value, error) {
	f := model.Filter{Operator: model.LogicalAnd}
	if opText, ok := childText(el, elemOperator); ok && opText != "" {
		switch model.LogicalOperator(opText) {
		case model.LogicalAnd, model.LogicalOr:
			f.Operator = model.LogicalOperator(opText)
		default:
			return nil, errspkg.NewMalformedValue(el.GetPath(), fmt.Sprintf("unknown filter operator %q", opText), nil)
		}
	}
	if conds := childByTag(el, elemConditions); conds != nil {
		for _, condEl := range conds.ChildElements() {
			if condEl.Tag != elemCondition {
				continue
			}
			cond, err := c.decodeCondition(condEl)
			if err != nil {
				return nil, err
			}
			f.Conditions = append(f.Conditions, cond.(model.Condition))
		}
	}
	if nested := childByTag(el, elemFilters); nested != nil {
		for _, subEl := range nested.ChildElements() {
			if subEl.Tag != elemFilter {
				continue
			}
			sub, err := c.decodeFilter(subEl)
			if err != nil {
				return nil, err
			}
			f.Filters = append(f.Filters, sub.(model.Filter))
		}
	}
	return f, nil
}

func (c *Codec) decodeCondition(el *etree.Element) (model.Value, error) {
	attr, ok := childText(el, elemAttribute)
	if !ok || attr == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "condition missing Attribute", nil)
	}
	op, ok := childText(el, elemOperator)
	if !ok || op == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "condition missing Operator", nil)
	}
	cond := model.Condition{Attribute: attr, Operator: op}
	if values := childByTag(el, elemValues); values != nil {
		for _, valueEl := range values.ChildElements() {
			if valueEl.Tag != elemCode {
				continue
			}
			v, err := c.Decode(hintOf(valueEl), valueEl)
			if err != nil {
				return nil, err
			}
			cond.Values = append(cond.Values, v)
		}
	}
	return cond, nil
}

func (c *Codec) decodeOptionValue(el *etree.Element) (model.Value, error) {
	text, ok := childText(el, elemCode)
	if !ok || text == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "option value missing Value", nil)
	}
	code, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "option value is not an integer", err)
	}
	return model.OptionValue(code), nil
}

func (c *Codec) decodeMoney(el *etree.Element) (model.Value, error) {
	text, ok := childText(el, elemAmount)
	if !ok || text == "" {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "money missing Amount", nil)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "money amount is not a decimal", err)
	}
	return model.Money{Amount: amount}, nil
}

// decodeMessageCollection decodes each direct child as a nested message,
// preserving document order exactly: batch execution order is
// caller-significant.
func (c *Codec) decodeMessageCollection(el *etree.Element) (model.Value, error) {
	coll := model.MessageCollection{}
	for _, msgEl := range el.ChildElements() {
		msg, err := c.DecodeMessageNode(msgEl)
		if err != nil {
			return nil, err
		}
		coll.Messages = append(coll.Messages, msg)
	}
	return coll, nil
}

func (c *Codec) decodeBatchSettings(el *etree.Element) (model.Value, error) {
	settings := model.BatchSettings{}
	if text, ok := childText(el, elemContinueOnError); ok && text != "" {
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errspkg.NewMalformedValue(el.GetPath(), "ContinueOnError is not a boolean", err)
		}
		settings.ContinueOnError = v
	}
	if text, ok := childText(el, elemReturnResponses); ok && text != "" {
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errspkg.NewMalformedValue(el.GetPath(), "ReturnResponses is not a boolean", err)
		}
		settings.ReturnResponses = v
	}
	return settings, nil
}

func (c *Codec) decodeGUID(el *etree.Element) (model.Value, error) {
	id, err := uuid.Parse(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "value is not a guid", err)
	}
	return model.GUID(id), nil
}

func (c *Codec) decodeInt(el *etree.Element) (model.Value, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(el.Text()), 10, 64)
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "value is not an integer", err)
	}
	return model.Int(n), nil
}

func (c *Codec) decodeBool(el *etree.Element) (model.Value, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "value is not a boolean", err)
	}
	return model.Bool(b), nil
}

func (c *Codec) decodeTimestamp(el *etree.Element) (model.Value, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "value is not an RFC 3339 timestamp", err)
	}
	return model.Timestamp(t.UTC()), nil
}

func (c *Codec) decodeDecimal(el *etree.Element) (model.Value, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, errspkg.NewMalformedValue(el.GetPath(), "value is not a decimal", err)
	}
	return model.Decimal{Amount: d}, nil
}

// decodeEnumOrString resolves hint against the enum index. An unresolvable
// hint degrades to a plain string value rather than failing: slightly
// mismatched client hints must stay interoperable.
func (c *Codec) decodeEnumOrString(hint string, el *etree.Element) (model.Value, error) {
	enum, ok := c.registry.ResolveEnum(hint)
	if !ok {
		c.log.Debug("unrecognized type hint, decoding as string", loggingpkg.LogFields{
			"hint": hint,
		})
		return model.String(el.Text()), nil
	}

	var bits int64
	for _, token := range strings.Fields(el.Text()) {
		if v, ok := enum.Member(token); ok {
			bits |= v
			continue
		}
		// Numeric fallback before the token is dropped.
		if n, err := strconv.ParseInt(token, 10, 64); err == nil {
			bits |= n
			continue
		}
		c.log.Debug("skipping unknown enum member", loggingpkg.LogFields{
			"enum":  enum.Name,
			"token": token,
		})
	}
	return model.Enum{Type: enum.Name, Bits: bits}, nil
}
