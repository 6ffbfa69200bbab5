package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for quarry observability spans and metrics.
var (
	AttrModel    = attribute.Key("model.name")
	AttrProvider = attribute.Key("model.provider")
	AttrStatus   = attribute.Key("model.status")

	AttrTokensInput  = attribute.Key("model.tokens.input")
	AttrTokensOutput = attribute.Key("model.tokens.output")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolAnswerLength = attribute.Key("tool.answer_length")
)
