package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldSpreadsheetID = "spreadsheet_id"
	FieldDataset       = "dataset"
	FieldRange         = "range"
	FieldRanges        = "ranges"
	FieldSchemaVersion = "schema_version"
	FieldRows          = "rows"
	FieldDropped       = "dropped_rows"
	FieldFunction      = "function"
	FieldQuery         = "query"
	FieldQueued        = "queued"
	FieldMessageID     = "message_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentContent = "content"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentScript  = "script"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpRead           = "read"
	OpReadBatch      = "read_batch"
	OpWrite          = "write"
	OpResolveRange   = "resolve_range"
	OpResolveVersion = "resolve_version"
	OpRunScript      = "run_script"
	OpSubmit         = "submit"
	OpShutdown       = "shutdown"
	OpStartup        = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithContent adds the fields identifying a content request.
func (f LogFields) WithContent(spreadsheetID, dataset, rng string) LogFields {
	f[FieldSpreadsheetID] = spreadsheetID
	f[FieldDataset] = dataset
	if rng != "" {
		f[FieldRange] = rng
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
