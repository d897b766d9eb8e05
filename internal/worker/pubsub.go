package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// Job types the worker accepts.
const (
	JobTypeRefreshSnapshot = "refresh_snapshot"
	JobTypeRunExport       = "run_export"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	exports          *export.Service
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Exports          *export.Service
	Logger           zerolog.Logger
}

// JobMessage is the envelope every worker job shares.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Export carries the selection for run_export jobs.
	Export *ExportJob `json:"export,omitempty"`
}

// ExportJob is the payload of a scheduled export run. Timestamps are
// RFC 3339; the export service reformats them for the upstream API.
type ExportJob struct {
	RequestedBy  string   `json:"requested_by,omitempty"`
	Operators    []string `json:"operators,omitempty"`
	PaymentZones []string `json:"payment_zones,omitempty"`
	TimeStart    string   `json:"time_start"`
	TimeEnd      string   `json:"time_end"`
	ParkingCheck bool     `json:"parking_check"`
}

// Selection converts the job payload into an export selection.
func (j *ExportJob) Selection() (parkkihubi.ExportSelection, error) {
	start, err := time.Parse(time.RFC3339, j.TimeStart)
	if err != nil {
		return parkkihubi.ExportSelection{}, fmt.Errorf("%w: time_start: %v", export.ErrInvalidSelection, err)
	}
	end, err := time.Parse(time.RFC3339, j.TimeEnd)
	if err != nil {
		return parkkihubi.ExportSelection{}, fmt.Errorf("%w: time_end: %v", export.ErrInvalidSelection, err)
	}

	return parkkihubi.ExportSelection{
		OperatorIDs:  j.Operators,
		ZoneCodes:    j.PaymentZones,
		TimeStart:    start,
		TimeEnd:      end,
		ParkingCheck: j.ParkingCheck,
	}, nil
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings. Export runs download whole CSV files, so
	// messages may stay outstanding for a while.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		exports:          cfg.Exports,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Redelivery cannot fix a malformed message.
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Ack()
		return
	}

	var err error
	switch job.JobType {
	case JobTypeRefreshSnapshot:
		err = h.handleRefreshSnapshot(ctx)
	case JobTypeRunExport:
		err = h.handleRunExport(ctx, job.Export)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		// Invalid selections stay invalid on redelivery; drop them.
		if errors.Is(err, export.ErrInvalidSelection) {
			logger.Error().Err(err).Str("job_type", job.JobType).Msg("job rejected")
			msg.Ack()
			return
		}

		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

// handleRefreshSnapshot forces one refresh cycle outside the ticker schedule.
func (h *PubSubHandler) handleRefreshSnapshot(ctx context.Context) error {
	if h.refreshJob == nil {
		return errors.New("refresh job not configured")
	}

	result := h.refreshJob.Run(ctx)
	if len(result.Errors) > 0 {
		return fmt.Errorf("refresh cycle finished with %d errors: %s %s",
			len(result.Errors), result.Errors[0].Task, result.Errors[0].Error)
	}

	h.logger.Info().
		Dur("duration", result.Duration).
		Int("regions", result.SnapshotRegions).
		Msg("forced refresh completed")

	return nil
}

// handleRunExport runs a scheduled CSV export through the export service.
func (h *PubSubHandler) handleRunExport(ctx context.Context, job *ExportJob) error {
	if h.exports == nil {
		return errors.New("export service not configured")
	}
	if job == nil {
		return fmt.Errorf("%w: run_export message carries no export payload", export.ErrInvalidSelection)
	}

	sel, err := job.Selection()
	if err != nil {
		return err
	}

	requestedBy := job.RequestedBy
	if requestedBy == "" {
		requestedBy = "worker"
	}

	record, err := h.exports.Run(ctx, requestedBy, sel)
	if err != nil {
		return fmt.Errorf("running export: %w", err)
	}

	h.logger.Info().
		Str("export_id", record.ID).
		Str("filename", record.Filename).
		Int64("bytes", record.Bytes).
		Msg("scheduled export completed")

	return nil
}
