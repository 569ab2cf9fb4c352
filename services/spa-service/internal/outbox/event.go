package outbox

// Event is the domain event envelope written to the outbox table in the same
// store transaction as the mutation it describes. The Kafka topic name equals
// EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the front-of-house core.
const (
	EventBookingCreated = "spa.booking.created.v1"
	EventBookingUpdated = "spa.booking.updated.v1"
	EventBookingDeleted = "spa.booking.deleted.v1"
	EventBookingStarted = "spa.booking.started.v1"
	EventBookingEnded   = "spa.booking.ended.v1"

	EventVisitOpened          = "spa.visit.opened.v1"
	EventVisitPaymentRecorded = "spa.visit.payment_recorded.v1"
	EventVisitCompleted       = "spa.visit.completed.v1"
)
