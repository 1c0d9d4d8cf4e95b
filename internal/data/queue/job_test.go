package queue

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/internal/domain/model"
)

func TestKeys(t *testing.T) {
	k := newKeys("bull:", "completion")

	assert.Equal(t, "bull:completion:id", k.id())
	assert.Equal(t, "bull:completion:wait", k.wait())
	assert.Equal(t, "bull:completion:active", k.active())
	assert.Equal(t, "bull:completion:delayed", k.delayed())
	assert.Equal(t, "bull:completion:completed", k.completed())
	assert.Equal(t, "bull:completion:failed", k.failed())
	assert.Equal(t, "bull:completion:17", k.job("17"))
}

func TestEncodeDecodeJob(t *testing.T) {
	opts := model.DefaultJobOptions()
	fields, err := encodeJob("process", json.RawMessage(`{"completionId":"completion_1"}`), opts, 1700000000000)
	require.NoError(t, err)

	h := make(map[string]string, len(fields))
	for k, v := range fields {
		h[k] = fmt.Sprint(v)
	}

	job, err := decodeJob("completion", "5", h)
	require.NoError(t, err)
	assert.Equal(t, "5", job.ID)
	assert.Equal(t, "completion", job.Queue)
	assert.Equal(t, "process", job.Name)
	assert.JSONEq(t, `{"completionId":"completion_1"}`, string(job.Data))
	assert.Equal(t, opts, job.Opts)
	assert.Equal(t, int64(1700000000000), job.Timestamp)
	assert.Zero(t, job.AttemptsMade)
	assert.JSONEq(t, `0`, string(job.Progress))
	assert.Nil(t, job.ProcessedOn)
	assert.Nil(t, job.FinishedOn)
	assert.Empty(t, job.Stacktrace)
}

func TestEncodeJob_DefaultsAndValidation(t *testing.T) {
	fields, err := encodeJob("welcome", nil, model.DefaultJobOptions(), 1)
	require.NoError(t, err)
	assert.Equal(t, "{}", fields[fieldData])

	_, err = encodeJob("welcome", json.RawMessage(`{broken`), model.DefaultJobOptions(), 1)
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestDecodeJob_FinishedFields(t *testing.T) {
	job, err := decodeJob("emails", "9", map[string]string{
		fieldName:         "welcome",
		fieldData:         `{"to":"a@example.com"}`,
		fieldAttemptsMade: "3",
		fieldProcessedOn:  "1700000001000",
		fieldFinishedOn:   "1700000002000",
		fieldFailedReason: "smtp timeout",
		fieldStacktrace:   `["smtp timeout","smtp timeout"]`,
		fieldReturnValue:  `{"sent":false}`,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, job.AttemptsMade)
	require.NotNil(t, job.ProcessedOn)
	assert.Equal(t, int64(1700000001000), *job.ProcessedOn)
	require.NotNil(t, job.FinishedOn)
	assert.Equal(t, int64(1700000002000), *job.FinishedOn)
	assert.Equal(t, "smtp timeout", job.FailedReason)
	assert.Len(t, job.Stacktrace, 2)
	assert.JSONEq(t, `{"sent":false}`, string(job.ReturnValue))
	assert.Equal(t, model.DefaultJobOptions(), job.Opts)
}

func TestDecodeJob_Malformed(t *testing.T) {
	_, err := decodeJob("emails", "1", map[string]string{fieldAttemptsMade: "many"})
	require.Error(t, err)

	_, err = decodeJob("emails", "1", map[string]string{fieldOpts: "{"})
	require.Error(t, err)
}

func TestAppendStacktrace_Bounded(t *testing.T) {
	var trace []string
	for i := range maxStacktrace + 3 {
		raw, err := appendStacktrace(trace, fmt.Sprintf("err %d", i))
		require.NoError(t, err)
		trace = nil
		require.NoError(t, json.Unmarshal([]byte(raw), &trace))
	}

	require.Len(t, trace, maxStacktrace)
	assert.Equal(t, "err 3", trace[0])
	assert.Equal(t, fmt.Sprintf("err %d", maxStacktrace+2), trace[len(trace)-1])
}
