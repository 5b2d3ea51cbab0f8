package recordgate

import (
	codecpkg "github.com/recordwire/recordgate/internal/gateway/codec"
	configpkg "github.com/recordwire/recordgate/internal/gateway/config"
	decodepkg "github.com/recordwire/recordgate/internal/gateway/decode"
	encodepkg "github.com/recordwire/recordgate/internal/gateway/encode"
	enginepkg "github.com/recordwire/recordgate/internal/gateway/engine"
	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	eventspkg "github.com/recordwire/recordgate/internal/gateway/events"
	idspkg "github.com/recordwire/recordgate/internal/gateway/ids"
	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	metricspkg "github.com/recordwire/recordgate/internal/gateway/metrics"
	modelpkg "github.com/recordwire/recordgate/internal/gateway/model"
	oauthpkg "github.com/recordwire/recordgate/internal/gateway/oauth"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
	serverpkg "github.com/recordwire/recordgate/internal/gateway/server"
)

type (
	Config = configpkg.Config

	Message = modelpkg.Message
	Result  = modelpkg.Result
	Bag     = modelpkg.Bag
	Value   = modelpkg.Value
	Kind    = modelpkg.Kind

	Registry = registrypkg.Registry
	Catalog  = registrypkg.Catalog
	Shape    = registrypkg.Shape
	Enum     = registrypkg.Enum

	String            = modelpkg.String
	Int               = modelpkg.Int
	Bool              = modelpkg.Bool
	GUID              = modelpkg.GUID
	Timestamp         = modelpkg.Timestamp
	Decimal           = modelpkg.Decimal
	Record            = modelpkg.Record
	RecordRef         = modelpkg.RecordRef
	RecordSet         = modelpkg.RecordSet
	MessageCollection = modelpkg.MessageCollection

	Codec   = codecpkg.Codec
	Decoder = decodepkg.Decoder
	Encoder = encodepkg.Encoder

	Executor        = enginepkg.Executor
	ExecutorFunc    = enginepkg.Func
	SecurityContext = enginepkg.SecurityContext

	Server       = serverpkg.Server
	TokenService = oauthpkg.TokenService
	AuditBus     = eventspkg.Bus
	Metrics      = metricspkg.Metrics

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	DecodeError         = errspkg.DecodeError
	EncodeError         = errspkg.EncodeError
	EngineError         = errspkg.EngineError
	MalformedValueError = errspkg.MalformedValueError
)

var (
	NewRegistry    = registrypkg.New
	BuiltinCatalog = registrypkg.Builtin

	NewCodec   = codecpkg.New
	NewDecoder = decodepkg.New
	NewEncoder = encodepkg.New
	NewServer  = serverpkg.New

	NewMessage = modelpkg.NewMessage
	NewResult  = modelpkg.NewResult
	NewBag     = modelpkg.NewBag

	NewTokenService = oauthpkg.NewTokenService
	NewAuditBus     = eventspkg.NewBus
	NewMetrics      = metricspkg.New

	LoadConfig = configpkg.Load

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewWatermillAdapter  = loggingpkg.NewWatermillAdapter
	NopLogger            = loggingpkg.Nop

	IsDecodeError = errspkg.IsDecode
	IsEngineError = errspkg.IsEngine

	ErrRegistryRequired = errspkg.ErrRegistryRequired
	ErrEngineRequired   = errspkg.ErrEngineRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrNoMessageNode    = errspkg.ErrNoMessageNode
	ErrNoMessageName    = errspkg.ErrNoMessageName

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	CreateULID = idspkg.CreateULID
)
