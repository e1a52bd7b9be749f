package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SendResult is the provider's answer to a single message.
type SendResult struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Gateway delivers a text message to a phone number. A returned error means
// the provider could not be reached; a reachable provider that refuses the
// message answers with Success=false and an ErrorCode.
type Gateway interface {
	Send(ctx context.Context, phone, message string) (SendResult, error)
}

// LogGateway writes messages to the log instead of sending them. It is used
// when no SMS provider is configured.
type LogGateway struct {
	log logrus.FieldLogger
}

func NewLogGateway(log logrus.FieldLogger) *LogGateway {
	return &LogGateway{log: log}
}

func (g *LogGateway) Send(_ context.Context, phone, message string) (SendResult, error) {
	jobID := uuid.NewString()
	g.log.WithFields(logrus.Fields{
		"phone":  maskPhone(phone),
		"job_id": jobID,
	}).Infof("SMS (not sent, no provider configured): %s", message)
	return SendResult{Success: true, JobID: jobID}, nil
}

// maskPhone keeps the last four digits for log lines.
func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
