package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/target/jobrelay/internal/domain/model"
)

const (
	fieldName         = "name"
	fieldData         = "data"
	fieldOpts         = "opts"
	fieldTimestamp    = "timestamp"
	fieldAttemptsMade = "attemptsMade"
	fieldProgress     = "progress"
	fieldProcessedOn  = "processedOn"
	fieldFinishedOn   = "finishedOn"
	fieldFailedReason = "failedReason"
	fieldStacktrace   = "stacktrace"
	fieldReturnValue  = "returnvalue"

	// maxStacktrace bounds how many failure reasons a job keeps.
	maxStacktrace = 10
)

var emptyObject = json.RawMessage(`{}`)

// ErrInvalidData is returned when a job payload is not valid JSON.
var ErrInvalidData = errors.New("job data is not valid JSON")

// encodeJob returns the hash fields written for a freshly enqueued job.
func encodeJob(name string, data json.RawMessage, opts model.JobOptions, timestamp int64) (map[string]any, error) {
	if len(data) == 0 {
		data = emptyObject
	}
	if !json.Valid(data) {
		return nil, ErrInvalidData
	}
	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode job options: %w", err)
	}
	return map[string]any{
		fieldName:         name,
		fieldData:         string(data),
		fieldOpts:         string(rawOpts),
		fieldTimestamp:    timestamp,
		fieldAttemptsMade: 0,
		fieldProgress:     "0",
	}, nil
}

// decodeJob builds a QueuedJob from the hash fields returned by HGETALL.
func decodeJob(queueName, id string, h map[string]string) (*model.QueuedJob, error) {
	job := &model.QueuedJob{
		ID:           id,
		Queue:        queueName,
		Name:         h[fieldName],
		Data:         rawOrDefault(h[fieldData], emptyObject),
		Progress:     rawOrDefault(h[fieldProgress], json.RawMessage("0")),
		FailedReason: h[fieldFailedReason],
		Opts:         model.DefaultJobOptions(),
	}

	if v := h[fieldOpts]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Opts); err != nil {
			return nil, fmt.Errorf("decode opts of job %s: %w", id, err)
		}
	}
	if v := h[fieldStacktrace]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Stacktrace); err != nil {
			return nil, fmt.Errorf("decode stacktrace of job %s: %w", id, err)
		}
	}
	if v := h[fieldReturnValue]; v != "" {
		job.ReturnValue = json.RawMessage(v)
	}

	var err error
	if job.Timestamp, err = parseInt(h, fieldTimestamp); err != nil {
		return nil, err
	}
	attempts, err := parseInt(h, fieldAttemptsMade)
	if err != nil {
		return nil, err
	}
	job.AttemptsMade = int(attempts)

	if job.ProcessedOn, err = parseOptionalInt(h, fieldProcessedOn); err != nil {
		return nil, err
	}
	if job.FinishedOn, err = parseOptionalInt(h, fieldFinishedOn); err != nil {
		return nil, err
	}
	return job, nil
}

// appendStacktrace returns the JSON stacktrace after recording reason, newest last.
func appendStacktrace(trace []string, reason string) (string, error) {
	trace = append(append([]string(nil), trace...), reason)
	if len(trace) > maxStacktrace {
		trace = trace[len(trace)-maxStacktrace:]
	}
	raw, err := json.Marshal(trace)
	if err != nil {
		return "", fmt.Errorf("encode stacktrace: %w", err)
	}
	return string(raw), nil
}

func rawOrDefault(v string, def json.RawMessage) json.RawMessage {
	if v == "" {
		return append(json.RawMessage(nil), def...)
	}
	return json.RawMessage(v)
}

func parseInt(h map[string]string, field string) (int64, error) {
	v := h[field]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return n, nil
}

func parseOptionalInt(h map[string]string, field string) (*int64, error) {
	if h[field] == "" {
		return nil, nil
	}
	n, err := parseInt(h, field)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
