package codec

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	"github.com/recordwire/recordgate/internal/gateway/model"
)

// Encode writes v into el as the structural inverse of Decode: same child
// shapes, same type-hint attributes. Composite hints carry the primary
// catalog prefix; scalar hints are unprefixed, as emitted by real clients.
func (c *Codec) Encode(v model.Value, el *etree.Element) error {
	switch tv := v.(type) {
	case model.String:
		setHint(el, hintString)
		el.SetText(string(tv))
	case model.Int:
		setHint(el, hintInt)
		el.SetText(strconv.FormatInt(int64(tv), 10))
	case model.Bool:
		setHint(el, hintBool)
		el.SetText(strconv.FormatBool(bool(tv)))
	case model.GUID:
		setHint(el, hintGUID)
		el.SetText(uuid.UUID(tv).String())
	case model.Timestamp:
		setHint(el, hintDateTime)
		el.SetText(time.Time(tv).UTC().Format(time.RFC3339Nano))
	case model.Decimal:
		setHint(el, hintDecimal)
		el.SetText(tv.Amount.String())
	case model.Enum:
		return c.encodeEnum(tv, el)
	case model.Record:
		setHint(el, qualify(hintRecord))
		return c.encodeRecordBody(tv, el)
	case model.RecordRef:
		setHint(el, qualify(hintRecordRef))
		addChildText(el, elemTypeName, tv.TypeName)
		addChildText(el, elemID, tv.ID.String())
	case model.RecordSet:
		setHint(el, qualify(hintRecordSet))
		return c.encodeRecordSetBody(tv, el)
	case model.OptionValue:
		setHint(el, qualify(hintOptionValue))
		addChildText(el, elemCode, strconv.FormatInt(int64(tv), 10))
	case model.Money:
		setHint(el, qualify(hintMoney))
		addChildText(el, elemAmount, tv.Amount.String())
	case model.ColumnSelection:
		setHint(el, qualify(hintColumnSelection))
		c.encodeColumnSelectionBody(tv, el)
	case model.Query:
		setHint(el, qualify(hintQuery))
		return c.encodeQueryBody(tv, el)
	case model.Filter:
		setHint(el, qualify(hintFilter))
		return c.encodeFilterBody(tv, el)
	case model.Condition:
		setHint(el, qualify(hintCondition))
		return c.encodeConditionBody(tv, el)
	case model.MessageCollection:
		setHint(el, qualify(hintMessageCollection))
		for _, msg := range tv.Messages {
			if err := c.EncodeMessageNode(msg, el.CreateElement(elemRequest)); err != nil {
				return err
			}
		}
	case model.BatchSettings:
		setHint(el, qualify(hintBatchSettings))
		addChildText(el, elemContinueOnError, strconv.FormatBool(tv.ContinueOnError))
		addChildText(el, elemReturnResponses, strconv.FormatBool(tv.ReturnResponses))
	default:
		return errspkg.NewEncodeError("unsupported value", errspkg.ErrUnknownValue)
	}
	return nil
}

func (c *Codec) encodeEnum(v model.Enum, el *etree.Element) error {
	setHint(el, qualify(v.Type))
	enum, ok := c.registry.ResolveEnum(v.Type)
	if !ok {
		// No descriptor for the declared type; the numeric form is still
		// decodable on the other side via the per-token fallback.
		c.log.Debug("encoding enum without descriptor", loggingpkg.LogFields{
			"enum": v.Type,
		})
		el.SetText(strconv.FormatInt(v.Bits, 10))
		return nil
	}
	names := enum.MemberNames(v.Bits)
	if len(names) == 0 {
		el.SetText(strconv.FormatInt(v.Bits, 10))
		return nil
	}
	if enum.Flags {
		// Bits outside the declared members go out as a numeric token; the
		// decoder's per-token fallback reads them back.
		var covered int64
		for _, name := range names {
			if bits, ok := enum.Member(name); ok {
				covered |= bits
			}
		}
		if residual := v.Bits &^ covered; residual != 0 {
			names = append(names, strconv.FormatInt(residual, 10))
		}
	}
	el.SetText(strings.Join(names, " "))
	return nil
}

func (c *Codec) encodeRecordBody(rec model.Record, el *etree.Element) error {
	addChildText(el, elemTypeName, rec.TypeName)
	if rec.ID != nil {
		addChildText(el, elemID, rec.ID.String())
	}
	attrs := el.CreateElement(elemAttributes)
	var encodeErr error
	rec.Attributes.Each(func(key string, v model.Value) bool {
		pair := attrs.CreateElement(elemPair)
		addChildText(pair, elemKey, key)
		if err := c.Encode(v, pair.CreateElement(elemValue)); err != nil {
			encodeErr = err
			return false
		}
		return true
	})
	return encodeErr
}

func (c *Codec) encodeRecordSetBody(set model.RecordSet, el *etree.Element) error {
	if set.TypeName != "" {
		addChildText(el, elemTypeName, set.TypeName)
	}
	records := el.CreateElement(elemRecords)
	for _, rec := range set.Records {
		if err := c.encodeRecordBody(rec, records.CreateElement(elemRecord)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeColumnSelectionBody(sel model.ColumnSelection, el *etree.Element) {
	if sel.All {
		addChildText(el, elemAllColumns, "true")
		return
	}
	addChildText(el, elemAllColumns, "false")
	cols := el.CreateElement(elemColumns)
	for _, col := range sel.Columns {
		addChildText(cols, elemColumn, col)
	}
}

func (c *Codec) encodeQueryBody(q model.Query, el *etree.Element) error {
	addChildText(el, elemTypeName, q.TypeName)
	c.encodeColumnSelectionBody(q.Columns, el.CreateElement(elemColumns))
	if q.Limit != nil {
		addChildText(el, elemLimit, strconv.FormatInt(*q.Limit, 10))
	}
	if q.Filter != nil {
		return c.encodeFilterBody(*q.Filter, el.CreateElement(elemFilter))
	}
	return nil
}

func (c *Codec) encodeFilterBody(f model.Filter, el *etree.Element) error {
	addChildText(el, elemOperator, string(f.Operator))
	if len(f.Conditions) > 0 {
		conds := el.CreateElement(elemConditions)
		for _, cond := range f.Conditions {
			if err := c.encodeConditionBody(cond, conds.CreateElement(elemCondition)); err != nil {
				return err
			}
		}
	}
	if len(f.Filters) > 0 {
		nested := el.CreateElement(elemFilters)
		for _, sub := range f.Filters {
			if err := c.encodeFilterBody(sub, nested.CreateElement(elemFilter)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Codec) encodeConditionBody(cond model.Condition, el *etree.Element) error {
	addChildText(el, elemAttribute, cond.Attribute)
	addChildText(el, elemOperator, cond.Operator)
	if len(cond.Values) > 0 {
		values := el.CreateElement(elemValues)
		for _, v := range cond.Values {
			if err := c.Encode(v, values.CreateElement(elemCode)); err != nil {
				return err
			}
		}
	}
	return nil
}

func setHint(el *etree.Element, hint string) {
	el.CreateAttr("i:"+attrType, hint)
}

func qualify(hint string) string {
	return PrefixPrimary + ":" + hint
}

func addChildText(el *etree.Element, tag, text string) {
	el.CreateElement(tag).SetText(text)
}
