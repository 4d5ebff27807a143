package bus

// Topic names are a stable string contract; UI collaborators subscribe to
// these by name.
const (
	TopicPageNavigate     = "page-navigate"
	TopicHistoryUpdated   = "navigation-history-updated"
	TopicFormDataResolved = "form-data-resolved"
	TopicFormDataError    = "form-data-error"
	TopicListRefresh      = "list-refresh"
	TopicListRefreshAll   = "list-refresh-all"
	TopicPageRefresh      = "page-refresh"
	TopicDialogOpen       = "dialog-open"
	TopicCodeEditorOpen   = "codeEditor-open"
	TopicScriptExecuted   = "script-executed"
	TopicScriptError      = "script-error"
	TopicNodePropsChanged = "node-props-changed"
)
