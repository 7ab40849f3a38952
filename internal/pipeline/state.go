package pipeline

// State tracks one chunk through the pipeline. Transitions:
// PENDING -> PROMPTED -> RESPONSE_RECEIVED -> {PARSED | PARSE_FAILED}
// -> {VALIDATED | VALIDATION_FAILED} -> DONE. A transient completion
// failure returns to PROMPTED until the retry budget is spent.
type State string

const (
	StatePending          State = "PENDING"
	StatePrompted         State = "PROMPTED"
	StateResponseReceived State = "RESPONSE_RECEIVED"
	StateParsed           State = "PARSED"
	StateParseFailed      State = "PARSE_FAILED"
	StateValidated        State = "VALIDATED"
	StateValidationFailed State = "VALIDATION_FAILED"
	StateDone             State = "DONE"
)

// Machine-readable error codes surfaced in Info.
const (
	CodeCompletionFailed = "completion_failed"
	CodeParseFailed      = "json_parse_failed"
	CodeSchemaFailed     = "schema_validation_failed"
	CodeRenderFailed     = "template_render_failed"
	CodeCancelled        = "cancelled"
)
