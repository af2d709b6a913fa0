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
	FieldBackend    = "backend"
	FieldCollection = "collection"
	FieldExpenseID  = "expense_id"
	FieldMerchant   = "merchant"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldMonth      = "month"
	FieldRows       = "rows"
	FieldDropped    = "dropped"
	FieldCacheHit   = "cache_hit"
	FieldOrigin     = "origin"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentCLI       = "cli"
	ComponentDashboard = "dashboard"
	ComponentStore     = "store"
	ComponentBackend   = "backend"
	ComponentCache     = "cache"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentReceipts  = "receipts"
	ComponentExport    = "export"
)

// Operations defines standard operation names
const (
	OpConnect    = "connect"
	OpFetch      = "fetch_all"
	OpInsert     = "insert"
	OpDelete     = "delete"
	OpLoad       = "load"
	OpInvalidate = "invalidate"
	OpFilter     = "filter"
	OpValidate   = "validate"
	OpRender     = "render"
	OpExport     = "export"
	OpUpload     = "upload"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
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

// WithErrorKind adds the failure classification of err
func (f LogFields) WithErrorKind(kind string) LogFields {
	if kind != "" {
		f[FieldErrorKind] = kind
	}
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id, merchant, category, amount string) LogFields {
	if id != "" {
		f[FieldExpenseID] = id
	}
	f[FieldMerchant] = merchant
	f[FieldCategory] = category
	f[FieldAmount] = amount
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
