package tool

// MessageSummary holds the headers shown for an inbox entry.
type MessageSummary struct {
	ID      string `json:"id" jsonschema:"message ID"`
	Subject string `json:"subject" jsonschema:"email subject"`
	From    string `json:"from" jsonschema:"sender"`
	Date    string `json:"date" jsonschema:"message date"`
}

// Output is what MCP clients receive from any tool.
type Output struct {
	Status string `json:"status" jsonschema:"ok, degraded or failed"`
	Result string `json:"result" jsonschema:"human readable outcome"`
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
