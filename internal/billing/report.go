package billing

import (
	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/model"
)

// Failure records one definition that could not be billed for one occupant.
// OccupantID is zero when the definition itself is invalid.
type Failure struct {
	OccupantID  int64  `json:"occupant_id,omitempty"`
	PaymentType string `json:"payment_type"`
	Reason      string `json:"reason"`
	Err         error  `json:"-"`
}

// Report summarizes one trigger run. Duplicates are counted as skipped.
type Report struct {
	Trigger  Trigger         `json:"trigger"`
	Created  []model.Payment `json:"created"`
	Skipped  int             `json:"skipped"`
	Failures []Failure       `json:"failures"`
}

func (r *Report) fail(occupantID int64, paymentType string, err error) {
	r.Failures = append(r.Failures, Failure{OccupantID: occupantID, PaymentType: paymentType, Reason: err.Error(), Err: err})
}

func (r *Report) merge(other *Report) {
	r.Created = append(r.Created, other.Created...)
	r.Skipped += other.Skipped
	r.Failures = append(r.Failures, other.Failures...)
}

// Fields renders the report's counters for structured logging.
func (r *Report) Fields() logrus.Fields {
	return logrus.Fields{
		"trigger":  r.Trigger,
		"created":  len(r.Created),
		"skipped":  r.Skipped,
		"failures": len(r.Failures),
	}
}
