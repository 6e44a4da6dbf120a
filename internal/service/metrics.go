package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes recorded in auth_logins_total.
const (
	loginSuccess        = "success"
	loginNotFound       = "not_found"
	loginUnverified     = "unverified"
	loginBadCredentials = "bad_credentials"
	loginError          = "error"
)

// Email kinds recorded in auth_emails_total.
const (
	emailVerification  = "verification"
	emailPasswordReset = "password_reset"
)

// Metrics counts auth outcomes. A nil *Metrics records nothing.
type Metrics struct {
	signups prometheus.Counter
	logins  *prometheus.CounterVec
	emails  *prometheus.CounterVec
}

// NewMetrics registers the auth counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		signups: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_signups_total",
			Help: "Total number of accounts created",
		}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts by result",
		}, []string{"result"}),
		emails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_emails_total",
			Help: "Total number of outbound emails by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) signup() {
	if m != nil {
		m.signups.Inc()
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) email(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.emails.WithLabelValues(kind, result).Inc()
}
