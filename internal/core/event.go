package core

import "time"

const (
	EventTransactionRecorded EventKind = "transaction.recorded"
	EventBudgetExceeded      EventKind = "budget.exceeded"
	EventCategoryChanged     EventKind = "category.changed"
	EventOverrideSet         EventKind = "budget.override_set"
	EventInvestmentChanged   EventKind = "investment.changed"
)

type EventKind string

func (k EventKind) IsValid() bool {
	switch k {
	case EventTransactionRecorded, EventBudgetExceeded, EventCategoryChanged, EventOverrideSet, EventInvestmentChanged:
		return true
	}
	return false
}

// Event is a change notification. It carries ids, not payloads; consumers
// load what they need from the store.
type Event struct {
	Kind      EventKind         `json:"kind"`
	AccountID AccountID         `json:"account_id"`
	EntityID  string            `json:"entity_id"`
	Version   int64             `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}
