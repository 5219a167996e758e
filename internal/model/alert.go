package model

import "time"

// Alert categories.
const (
	CategoryActionRequired = "action_required"
	CategoryInfoOnly       = "info_only"
	CategoryRepliedThread  = "replied_thread"
)

// Alert is one mailbox message judged to need attention or already answered.
// Alerts are immutable; the store replaces them wholesale on upsert.
type Alert struct {
	// ID is the Message-ID header when present, otherwise the mailbox
	// UID rendered as a string.
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Category   string    `json:"category"`
	Reason     string    `json:"reason"`
	Snippet    string    `json:"snippet"`
	// UID is the mailbox unique id needed to refetch the original
	// message when building a reply draft.
	UID uint32 `json:"uid"`
}

// Classification is the outcome of rule evaluation for one message. It is
// never stored on its own, only folded into an Alert.
type Classification struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// ScanResult summarizes one scan cycle. NewAlerts holds exactly the alerts
// whose identity was not in the store before this cycle.
type ScanResult struct {
	Scanned   int     `json:"scanned"`
	NewCount  int     `json:"new_count"`
	NewAlerts []Alert `json:"new_alerts"`
}
