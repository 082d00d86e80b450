package kafka

// Default topic names (spec §6.4 events.transactions_topic/payments_topic),
// overridable via internal/config.Events.
const (
	DefaultTransactionsTopic = "ledger.transactions"
	DefaultPaymentsTopic     = "ledger.payments"
)
