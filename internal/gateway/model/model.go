// Package model defines the in-process representation of protocol messages,
// results and the closed set of value kinds the wire protocol carries.
package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

// Kind identifies the concrete variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindGUID
	KindTimestamp
	KindDecimal
	KindEnum
	KindRecord
	KindRecordRef
	KindRecordSet
	KindOptionValue
	KindMoney
	KindColumnSelection
	KindQuery
	KindFilter
	KindCondition
	KindMessageCollection
	KindBatchSettings
)

var kindNames = map[Kind]string{
	KindString:            "string",
	KindInt:               "int",
	KindBool:              "boolean",
	KindGUID:              "guid",
	KindTimestamp:         "dateTime",
	KindDecimal:           "decimal",
	KindEnum:              "enum",
	KindRecord:            "Record",
	KindRecordRef:         "RecordReference",
	KindRecordSet:         "RecordSet",
	KindOptionValue:       "OptionValue",
	KindMoney:             "Money",
	KindColumnSelection:   "ColumnSelection",
	KindQuery:             "Query",
	KindFilter:            "Filter",
	KindCondition:         "Condition",
	KindMessageCollection: "MessageCollection",
	KindBatchSettings:     "BatchSettings",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is the closed tagged variant carried by message parameters and record
// attributes. Every concrete case lives in this package; decoding never
// produces a Value outside this set.
type Value interface {
	Kind() Kind
}

// String is a plain text scalar, also the fallback for unrecognized hints.
type String string

// Int is a 64-bit signed integer scalar.
type Int int64

// Bool is a boolean scalar.
type Bool bool

// GUID is a UUID scalar.
type GUID uuid.UUID

// Timestamp is an instant in time, normalised to UTC on the wire.
type Timestamp time.Time

// Decimal is an arbitrary-precision decimal scalar.
type Decimal struct {
	Amount decimal.Decimal
}

// Enum is a named enumeration value. For flags-style enumerations Bits holds
// the OR-combination of the selected members.
type Enum struct {
	Type string
	Bits int64
}

// Record is a data row: a logical type name, an optional identity and an
// ordered attribute bag. Attributes may nest arbitrarily deep.
type Record struct {
	TypeName   string
	ID         *uuid.UUID
	Attributes *Bag
}

// RecordRef is a pointer to a row of a given logical type.
type RecordRef struct {
	TypeName string
	ID       uuid.UUID
}

// RecordSet is an ordered sequence of Records, optionally typed.
type RecordSet struct {
	TypeName string
	Records  []Record
}

// OptionValue is a single integer option code.
type OptionValue int64

// Money is a decimal currency amount.
type Money struct {
	Amount decimal.Decimal
}

// ColumnSelection selects either all columns or an explicit ordered set.
type ColumnSelection struct {
	All     bool
	Columns []string
}

// LogicalOperator combines filter clauses.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "And"
	LogicalOr  LogicalOperator = "Or"
)

// Query describes a structured retrieval over one logical type.
type Query struct {
	TypeName string
	Columns  ColumnSelection
	Limit    *int64
	Filter   *Filter
}

// Filter is a boolean combinator over conditions and nested filters.
type Filter struct {
	Operator   LogicalOperator
	Conditions []Condition
	Filters    []Filter
}

// Condition compares one attribute against an ordered list of literals.
type Condition struct {
	Attribute string
	Operator  string
	Values    []Value
}

// MessageCollection is an ordered batch of messages. Execution order is
// caller-significant and must be preserved exactly.
type MessageCollection struct {
	Messages []*Message
}

// BatchSettings controls batched execution behaviour.
type BatchSettings struct {
	ContinueOnError bool
	ReturnResponses bool
}

func (String) Kind() Kind            { return KindString }
func (Int) Kind() Kind               { return KindInt }
func (Bool) Kind() Kind              { return KindBool }
func (GUID) Kind() Kind              { return KindGUID }
func (Timestamp) Kind() Kind         { return KindTimestamp }
func (Decimal) Kind() Kind           { return KindDecimal }
func (Enum) Kind() Kind              { return KindEnum }
func (Record) Kind() Kind            { return KindRecord }
func (RecordRef) Kind() Kind         { return KindRecordRef }
func (RecordSet) Kind() Kind         { return KindRecordSet }
func (OptionValue) Kind() Kind       { return KindOptionValue }
func (Money) Kind() Kind             { return KindMoney }
func (ColumnSelection) Kind() Kind   { return KindColumnSelection }
func (Query) Kind() Kind             { return KindQuery }
func (Filter) Kind() Kind            { return KindFilter }
func (Condition) Kind() Kind         { return KindCondition }
func (MessageCollection) Kind() Kind { return KindMessageCollection }
func (BatchSettings) Kind() Kind     { return KindBatchSettings }

// Message is a decoded, typed unit of work: a name, an ordered parameter bag
// and an optional correlation identifier. Untyped marks messages whose name
// resolved to no registered shape; they still reach the engine.
type Message struct {
	Name          string
	Params        *Bag
	CorrelationID *uuid.UUID
	Untyped       bool
}

// NewMessage constructs a Message with an empty parameter bag.
func NewMessage(name string) *Message {
	return &Message{Name: name, Params: NewBag()}
}

// Result is the typed outcome of executing a Message. Name carries the
// declared message-name annotation; the engine leaves it empty and the
// response encoder derives it from the originating request. Items holds
// per-item sub-results for batched execution.
type Result struct {
	Name   string
	Params *Bag
	Items  []*Result
}

// NewResult constructs a Result with an empty parameter bag.
func NewResult() *Result {
	return &Result{Params: NewBag()}
}
