package types

// Status of a single operation on a row.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result of one remote (or locally rejected) operation.
type Outcome struct {
	Status Status `json:"status" yaml:"status"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func Succeeded(id string) Outcome { return Outcome{Status: StatusSucceeded, ID: id} }

func Failed(reason string) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

func (o Outcome) OK() bool { return o.Status == StatusSucceeded }

// ProvisioningResult ties a row to what happened to it. Subscription is nil
// when the run does not subscribe users.
type ProvisioningResult struct {
	Record       UserRecord `json:"record" yaml:"record"`
	Create       Outcome    `json:"create" yaml:"create"`
	Subscription *Outcome   `json:"subscription,omitempty" yaml:"subscription,omitempty"`
}

// BatchSummary accumulates counts across a run.
type BatchSummary struct {
	Total           int  `json:"total" yaml:"total"`
	Succeeded       int  `json:"succeeded" yaml:"succeeded"`
	Failed          int  `json:"failed" yaml:"failed"`
	Subscribing     bool `json:"subscribing" yaml:"subscribing"`
	Subscribed      int  `json:"subscribed" yaml:"subscribed"`
	SubscribeFailed int  `json:"subscribe_failed" yaml:"subscribe_failed"`
}

// Add folds one row result into the summary and returns the new value.
func (s BatchSummary) Add(r ProvisioningResult) BatchSummary {
	s.Total++
	if r.Create.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
	if r.Subscription != nil {
		s.Subscribing = true
		if r.Subscription.OK() {
			s.Subscribed++
		} else {
			s.SubscribeFailed++
		}
	}
	return s
}

// HasFailures decides the process exit status.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0 || s.SubscribeFailed > 0
}
