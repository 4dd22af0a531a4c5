package sluice

import (
	"github.com/zoobzio/capitan"
)

// Factory and schema signals for observability.
var (
	// Factory lifecycle events.
	FactoryCreated      = capitan.NewSignal("sluice.factory.created", "Stage factory created")
	ProcessorRegistered = capitan.NewSignal("sluice.processor.registered", "Processor registered")
	PredicateRegistered = capitan.NewSignal("sluice.predicate.registered", "Predicate registered")
	OrderingRegistered  = capitan.NewSignal("sluice.ordering.registered", "Ordering registered")
	FallbackRegistered  = capitan.NewSignal("sluice.fallback.registered", "Fallback registered")
	StageRegistered     = capitan.NewSignal("sluice.stage.registered", "Custom stage registered")

	// Schema operations.
	SchemaValidationStarted   = capitan.NewSignal("sluice.schema.validation.started", "Schema validation started")
	SchemaValidationCompleted = capitan.NewSignal("sluice.schema.validation.completed", "Schema validation completed")
	SchemaValidationFailed    = capitan.NewSignal("sluice.schema.validation.failed", "Schema validation failed")
	SchemaBuildStarted        = capitan.NewSignal("sluice.schema.build.started", "Schema build started")
	SchemaBuildCompleted      = capitan.NewSignal("sluice.schema.build.completed", "Schema build completed")
	SchemaBuildFailed         = capitan.NewSignal("sluice.schema.build.failed", "Schema build failed")

	// Dynamic schema management.
	SchemaRegistered   = capitan.NewSignal("sluice.schema.registered", "Schema registered")
	SchemaUpdated      = capitan.NewSignal("sluice.schema.updated", "Schema updated")
	SchemaUpdateFailed = capitan.NewSignal("sluice.schema.update.failed", "Schema update failed")
	SchemaRemoved      = capitan.NewSignal("sluice.schema.removed", "Schema removed")
	ChainRetrieved     = capitan.NewSignal("sluice.chain.retrieved", "Stage chain retrieved")

	// Bindings.
	BindingCreated = capitan.NewSignal("sluice.binding.created", "Binding created")
	BindingSynced  = capitan.NewSignal("sluice.binding.synced", "Binding rebuilt from updated schema")

	// Component removal.
	ProcessorRemoved = capitan.NewSignal("sluice.processor.removed", "Processor removed")
	PredicateRemoved = capitan.NewSignal("sluice.predicate.removed", "Predicate removed")
	OrderingRemoved  = capitan.NewSignal("sluice.ordering.removed", "Ordering removed")
	FallbackRemoved  = capitan.NewSignal("sluice.fallback.removed", "Fallback removed")
	StageRemoved     = capitan.NewSignal("sluice.stage.removed", "Custom stage removed")

	// File operations.
	SchemaFileLoaded  = capitan.NewSignal("sluice.schema.file.loaded", "Schema file loaded")
	SchemaFileFailed  = capitan.NewSignal("sluice.schema.file.failed", "Schema file failed")
	SchemaYAMLParsed  = capitan.NewSignal("sluice.schema.yaml.parsed", "YAML schema parsed")
	SchemaJSONParsed  = capitan.NewSignal("sluice.schema.json.parsed", "JSON schema parsed")
	SchemaParseFailed = capitan.NewSignal("sluice.schema.parse.failed", "Schema parse failed")
)

// Field keys for event data.
var (
	KeyName       = capitan.NewStringKey("name")
	KeyType       = capitan.NewStringKey("type")
	KeySchema     = capitan.NewStringKey("schema")
	KeyVersion    = capitan.NewStringKey("version")
	KeyOldVersion = capitan.NewStringKey("old_version")
	KeyNewVersion = capitan.NewStringKey("new_version")
	KeyPath       = capitan.NewStringKey("path")
	KeyError      = capitan.NewStringKey("error")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyErrorCount = capitan.NewIntKey("error_count")
	KeySizeBytes  = capitan.NewIntKey("size_bytes")
	KeyFound      = capitan.NewBoolKey("found")
)
