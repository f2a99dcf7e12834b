package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

const (
	defaultTitle   = "Attendance sync report"
	defaultTimeout = 30 * time.Second
)

// Dispatcher formats run results and sends them through a Transport.
type Dispatcher struct {
	transport  Transport
	recipients []string
	title      string
	attach     bool
	policy     retry.Policy
	timeout    time.Duration
	now        func() time.Time
	logger     logger.Logger
}

// NewDispatcher creates a Dispatcher sending to recipients.
func NewDispatcher(t Transport, recipients []string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:  t,
		recipients: recipients,
		title:      defaultTitle,
		policy:     retry.Default(),
		timeout:    defaultTimeout,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("notify")
	return d
}

// Notify delivers a summary of res. It never returns an error: failures are
// reported in the result.
func (d *Dispatcher) Notify(ctx context.Context, res *model.SyncResult) model.NotificationResult {
	if len(d.recipients) == 0 {
		return model.NotificationResult{Error: ErrNoRecipients.Error()}
	}
	msg := Message{To: d.recipients, Text: Summary(d.title, res)}
	if d.attach {
		data, err := Report(res)
		if err != nil {
			d.logger.Warn(ctx, "report rendering failed, sending text only",
				logger.String("run_id", res.Run.ID), logger.Error(err))
		} else {
			msg.Attachment = &Attachment{
				Name:        fmt.Sprintf("attendance-sync-%s.xlsx", d.now().Format("20060102-150405")),
				ContentType: XLSXContentType,
				Data:        data,
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var id string
	err := d.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = d.transport.Send(ctx, msg)
		return err
	})
	if err != nil {
		d.logger.Warn(ctx, "notification failed", logger.String("run_id", res.Run.ID), logger.Error(err))
		return model.NotificationResult{Error: err.Error()}
	}
	d.logger.Info(ctx, "notification sent",
		logger.String("run_id", res.Run.ID),
		logger.String("message_id", id),
		logger.Int("recipients", len(d.recipients)),
		logger.Bool("attachment", msg.Attachment != nil),
	)
	return model.NotificationResult{Success: true, MessageID: id}
}
