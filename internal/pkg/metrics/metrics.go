package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	AdmissionsAccepted prometheus.Counter
	AdmissionsDenied   *prometheus.CounterVec
	WebhookResults     *prometheus.CounterVec
	Reconciliations    *prometheus.CounterVec
	VotesSubmitted     prometheus.Counter
	QuorumTriggers     prometheus.Counter
	MailsSent          prometheus.Counter
	MailsFailed        prometheus.Counter
	PaidPostsReviewed  *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics set, registering it on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			AdmissionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "itbfess_admissions_accepted_total",
				Help: "Total number of regular menfess admissions accepted",
			}),
			AdmissionsDenied: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "itbfess_admissions_denied_total",
				Help: "Total number of regular menfess admissions denied, by reason",
			}, []string{"reason"}),
			WebhookResults: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "itbfess_payment_webhooks_total",
				Help: "Total number of payment webhook deliveries, by result",
			}, []string{"result"}),
			Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "itbfess_payment_reconciliations_total",
				Help: "Total number of payment status reconciliations, by outcome",
			}, []string{"status"}),
			VotesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "itbfess_deletion_votes_total",
				Help: "Total number of deletion votes submitted",
			}),
			QuorumTriggers: promauto.NewCounter(prometheus.CounterOpts{
				Name: "itbfess_vote_quorum_triggers_total",
				Help: "Total number of times a deletion vote quorum was reached",
			}),
			MailsSent: promauto.NewCounter(prometheus.CounterOpts{
				Name: "itbfess_mails_sent_total",
				Help: "Total number of emails sent successfully",
			}),
			MailsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "itbfess_mails_failed_total",
				Help: "Total number of email sends that failed",
			}),
			PaidPostsReviewed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "itbfess_paid_posts_reviewed_total",
				Help: "Total number of paid post review decisions, by status",
			}, []string{"status"}),
		}
	})
	return instance
}
