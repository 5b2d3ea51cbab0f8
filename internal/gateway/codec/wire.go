package codec

import (
	"strings"

	"github.com/beevik/etree"
)

// Wire element names. Matching is always on the local name so envelopes may
// carry any namespace prefixes their client library chose.
const (
	elemEnvelope    = "Envelope"
	elemBody        = "Body"
	elemExecute     = "Execute"
	elemRequest     = "request"
	elemRequestName = "RequestName"
	elemRequestID   = "RequestId"
	elemParameters  = "Parameters"
	elemPair        = "KeyValuePair"
	elemKey         = "key"
	elemValue       = "value"

	elemTypeName   = "TypeName"
	elemID         = "Id"
	elemAttributes = "Attributes"
	elemRecords    = "Records"
	elemRecord     = "Record"
	elemAmount     = "Amount"
	elemCode       = "Value"
	elemAllColumns = "AllColumns"
	elemColumns    = "Columns"
	elemColumn     = "Column"
	elemLimit      = "Limit"
	elemFilter     = "Filter"
	elemFilters    = "Filters"
	elemConditions = "Conditions"
	elemCondition  = "Condition"
	elemAttribute  = "Attribute"
	elemOperator   = "Operator"
	elemValues     = "Values"

	elemContinueOnError = "ContinueOnError"
	elemReturnResponses = "ReturnResponses"
)

// Type-hint identifiers. The decode table is keyed by these exact names;
// anything else falls through to enum resolution and finally plain string.
const (
	hintRecordRef         = "RecordReference"
	hintRecordSet         = "RecordSet"
	hintRecord            = "Record"
	hintQuery             = "Query"
	hintFilter            = "Filter"
	hintCondition         = "Condition"
	hintOptionValue       = "OptionValue"
	hintMoney             = "Money"
	hintColumnSelection   = "ColumnSelection"
	hintMessageCollection = "MessageCollection"
	hintBatchSettings     = "BatchSettings"
	hintGUID              = "guid"
	hintInt               = "int"
	hintLong              = "long"
	hintBool              = "boolean"
	hintDateTime          = "dateTime"
	hintDecimal           = "decimal"
	hintString            = "string"
)

const (
	attrType = "type"

	// PrefixPrimary qualifies types from the primary catalog namespace;
	// PrefixExtended qualifies the extended catalog.
	PrefixPrimary  = "a"
	PrefixExtended = "b"
)

// childByTag returns the first direct child element with the given local
// name. Direct children only: composite decoding must never reach into a
// nested record's subtree.
func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// childText returns the trimmed text of the named direct child.
func childText(el *etree.Element, tag string) (string, bool) {
	child := childByTag(el, tag)
	if child == nil {
		return "", false
	}
	return strings.TrimSpace(child.Text()), true
}

// hintOf extracts the type-hint attribute from el, prefix stripped.
// Returns "" when no hint is present.
func hintOf(el *etree.Element) string {
	for _, attr := range el.Attr {
		if attr.Key == attrType {
			return stripPrefix(attr.Value)
		}
	}
	return ""
}

// stripPrefix removes a namespace prefix ("a:Record" -> "Record").
func stripPrefix(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
