// Package bus wires the pipeline's event routing onto NATS JetStream:
// durable streams standing in for topic exchanges, durable consumers for
// durable queues, explicit ack/nak/term for manual acknowledgement, and a
// per-subject dead-letter subject for the exchange's DLQ.
package bus

import "time"

const (
	// StreamIncidents backs the "incidents" exchange.
	StreamIncidents = "INCIDENTS"
	// StreamPlans backs the "plans" exchange.
	StreamPlans = "PLANS"

	// SubjectIncidentsNew carries newly raised incidents to the Planner.
	SubjectIncidentsNew = "incidents.new"
	// SubjectIncidentsResolved carries Actor outcomes to the Learner.
	SubjectIncidentsResolved = "incidents.resolved"
	// SubjectPlansProposed carries Planner output to the Collaborator.
	SubjectPlansProposed = "plans.proposed"
	// SubjectPlansApproved carries Collaborator decisions to the Actor.
	SubjectPlansApproved = "plans.approved"
	// SubjectPlansApproval carries out-of-band human approval decisions
	// back to the Collaborator for plans it held for review.
	SubjectPlansApproval = "plans.approval"

	// ConsumerIncidentsNew is the Planner's durable queue.
	ConsumerIncidentsNew = "q.incidents.new"
	// ConsumerPlansProposed is the Collaborator's durable queue.
	ConsumerPlansProposed = "q.plans.proposed"
	// ConsumerPlansApproved is the Actor's durable queue.
	ConsumerPlansApproved = "q.plans.approved"
	// ConsumerIncidentsResolved is the Learner's durable queue.
	ConsumerIncidentsResolved = "q.incidents.resolved"
	// ConsumerPlansApproval is the Collaborator's durable queue for
	// approval decisions arriving out of band.
	ConsumerPlansApproval = "q.plans.approval"
)

// SpecFor returns the ConsumerSpec for a durable name, panicking if none
// matches — a binary with the wrong durable name is a wiring bug, not a
// runtime condition to recover from.
func SpecFor(durable string) ConsumerSpec {
	for _, spec := range Specs() {
		if spec.Durable == durable {
			return spec
		}
	}
	panic("bus: no consumer spec for durable " + durable)
}

// dlqSubject returns the dead-letter subject for a source subject, e.g.
// "plans.approved" -> "plans.approved.dlq".
func dlqSubject(subject string) string {
	return subject + ".dlq"
}

// ConsumerSpec describes one durable consumer's ack/retry policy.
type ConsumerSpec struct {
	Stream        string
	Durable       string
	FilterSubject string
	AckWait       time.Duration
	MaxDeliver    int
}

// Specs returns the five durable consumers this system defines, with
// AckWait tuned to the slowest step of the stage that drains them.
func Specs() []ConsumerSpec {
	return []ConsumerSpec{
		{
			Stream:        StreamIncidents,
			Durable:       ConsumerIncidentsNew,
			FilterSubject: SubjectIncidentsNew,
			AckWait:       180 * time.Second, // LLM plan synthesis + enrichment fan-out
			MaxDeliver:    3,
		},
		{
			Stream:        StreamPlans,
			Durable:       ConsumerPlansProposed,
			FilterSubject: SubjectPlansProposed,
			AckWait:       30 * time.Second, // policy evaluation only
			MaxDeliver:    3,
		},
		{
			Stream:        StreamPlans,
			Durable:       ConsumerPlansApproved,
			FilterSubject: SubjectPlansApproved,
			AckWait:       300 * time.Second, // sequential sandboxed step execution
			MaxDeliver:    5,
		},
		{
			Stream:        StreamIncidents,
			Durable:       ConsumerIncidentsResolved,
			FilterSubject: SubjectIncidentsResolved,
			AckWait:       60 * time.Second, // embedding + history index upsert
			MaxDeliver:    3,
		},
		{
			Stream:        StreamPlans,
			Durable:       ConsumerPlansApproval,
			FilterSubject: SubjectPlansApproval,
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
		},
	}
}
