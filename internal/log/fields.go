package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldSource     = "source"
	FieldWindow     = "window"
	FieldEvents     = "events"
	FieldRangeStart = "range_start"
	FieldRangeEnd   = "range_end"
	FieldSignature  = "signature"
	FieldSessionID  = "session_id"
	FieldAccountID  = "account_id"
	FieldApplied    = "applied"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentFeeds      = "feeds"
	ComponentMerge      = "merge"
	ComponentEngine     = "engine"
	ComponentProjection = "projection"
	ComponentBudget     = "budget"
	ComponentBrowse     = "browse"
	ComponentPrefs      = "prefs"
	ComponentRemote     = "remote"
	ComponentAMQP       = "amqp"
	ComponentCache      = "cache"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentWorker     = "worker"
)

// Operations defines standard operation names
const (
	OpFetch      = "fetch"
	OpMerge      = "merge"
	OpBucket     = "bucket"
	OpProject    = "project"
	OpBudget     = "budget"
	OpOpen       = "open"
	OpRefresh    = "refresh"
	OpMutate     = "mutate"
	OpInvalidate = "invalidate"
	OpPrefetch   = "prefetch"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
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

// WithSource adds the feed and month window a record refers to.
func (f LogFields) WithSource(source, window string) LogFields {
	f[FieldSource] = source
	f[FieldWindow] = window
	return f
}

// WithRange adds an inclusive date range.
func (f LogFields) WithRange(start, end string) LogFields {
	f[FieldRangeStart] = start
	f[FieldRangeEnd] = end
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
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
