package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldUserID    = "user_id"
	FieldChatID    = "chat_id"
	FieldExpenseID = "expense_id"
	FieldAmount    = "amount"
	FieldCategory  = "category"
	FieldCycle     = "cycle"
	FieldLevel     = "alert_level"
	FieldUpdateID  = "update_id"
	FieldCommand   = "command"
	FieldDuration  = "duration_ms"
)

// Components
const (
	ComponentApp        = "app"
	ComponentBot        = "bot"
	ComponentLedger     = "ledger"
	ComponentStorage    = "storage"
	ComponentExtraction = "extraction"
	ComponentExport     = "export"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
)

// Operations
const (
	OpAppend   = "append"
	OpEdit     = "edit"
	OpDelete   = "delete"
	OpReset    = "reset"
	OpAlert    = "alert"
	OpRollover = "rollover"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
