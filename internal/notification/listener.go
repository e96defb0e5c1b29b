package notification

import "context"

// FailureAlerter adapts the Service to the ETL runner's failure-listener
// contract, which does not return an error: publish failures are already
// logged inside the service.
type FailureAlerter struct {
	svc Service
}

func NewFailureAlerter(svc Service) *FailureAlerter {
	return &FailureAlerter{svc: svc}
}

func (a *FailureAlerter) RunFailed(ctx context.Context, jobName string, orgID int, reason string) {
	_ = a.svc.NotifyRunFailed(ctx, jobName, orgID, reason)
}
