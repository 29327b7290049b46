package goodsreturnnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "returns-notifier/internal/common/errors"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/metrics"
	"returns-notifier/internal/common/observability"
	"returns-notifier/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "goods-return-notification"

	differencesVariable = "differences"
)

type Handler struct {
	config       *Config
	dispatcher   *Dispatcher
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, dispatcher *Dispatcher, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          obs,
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"dispatchId":  uuid.NewString(),
	})
	log.Info("processing job", nil)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result, err := h.Process(ctx, job.Variables)
	if err != nil {
		h.recordJob(ctx, start, errorCode(err))
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, result, log)
	h.recordJob(ctx, start, "")
}

// Process decodes and checks the job variables, then dispatches the
// notification.
func (h *Handler) Process(ctx context.Context, variables string) (*DispatchResult, error) {
	req, err := decodeRequest(variables)
	if err != nil {
		return nil, err
	}
	return h.dispatcher.Dispatch(ctx, *req)
}

func (h *Handler) Execute(ctx context.Context, input *NotificationRequest) (*DispatchResult, error) {
	return h.dispatcher.Dispatch(ctx, *input)
}

// decodeRequest validates the variable shape against GetInputSchema and
// decodes it. Null values and an empty differences object are treated as
// absent.
func decodeRequest(variables string) (*NotificationRequest, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	dropNulls(raw)
	if diff, ok := raw[differencesVariable].(map[string]interface{}); ok {
		dropNulls(diff)
		if len(diff) == 0 {
			delete(raw, differencesVariable)
		}
	}

	vr, err := validation.Validate(raw, GetInputSchema())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !vr.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(vr.GetErrorMessages(), "; "))
	}

	var req NotificationRequest
	if err := json.Unmarshal([]byte(variables), &req); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("decode variables: %v", err))
	}
	if _, ok := raw[differencesVariable]; !ok {
		req.Differences = nil
	}
	return &req, nil
}

func dropNulls(m map[string]interface{}) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, result *DispatchResult, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(result)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	log.Info("job completed", map[string]interface{}{
		"employeeEmailSent": result.EmployeeEmailSent,
		"clientEmailSent":   result.ClientEmailSent,
		"clientSmsSent":     result.ClientSMS.IsSent,
	})
}

// recordJob updates job counters; an empty code means success.
func (h *Handler) recordJob(ctx context.Context, start time.Time, code string) {
	status := "completed"
	if code != "" {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}

func errorCode(err error) string {
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeInternal)
}
