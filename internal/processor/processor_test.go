package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/design-survey/internal/client"
	"github.com/kelsos/design-survey/internal/models"
)

const validAnswer = `{
  "background_color": {"suggestion": "warm beige", "confidence": "High"},
  "text_elements": {"suggestions": ["bold headline"], "confidence": "medium"},
  "visual_elements": {"suggestions": [], "confidence": "low"},
  "review_points": ["check contrast"],
  "overall_confidence": "medium"
}`

type step struct {
	content string
	err     error
}

type stubClient struct {
	steps   []step
	prompts []client.Prompt
}

func (s *stubClient) Complete(_ context.Context, prompt client.Prompt) (*client.Reply, error) {
	s.prompts = append(s.prompts, prompt)

	st := s.steps[len(s.steps)-1]
	if len(s.prompts) <= len(s.steps) {
		st = s.steps[len(s.prompts)-1]
	}
	if st.err != nil {
		return nil, st.err
	}
	return &client.Reply{
		Endpoint: "stub",
		Response: &models.ChatCompletionResponse{
			Choices: []models.ChatChoice{{Message: models.ResponseMessage{Content: st.content}}},
		},
	}, nil
}

func testTask() models.Task {
	return models.Task{
		ID:        "3",
		UserQuery: "Poster for a jazz night",
		Images: []models.ImageSet{
			{URLs: []string{"https://img/1.png", "https://img/2.png"}},
			{URLs: []string{"https://img/3.png"}},
		},
	}
}

func newTestProcessor(c ModelClient, attempts int) (*Processor, *[]time.Duration) {
	p := New(c, attempts, time.Millisecond)
	var waits []time.Duration
	p.onWait = func(_ models.TaskID, _ int, d time.Duration) {
		waits = append(waits, d)
	}
	return p, &waits
}

func TestProcessSucceedsAfterFailures(t *testing.T) {
	stub := &stubClient{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("503 service unavailable")},
		{content: validAnswer},
	}}
	p, waits := newTestProcessor(stub, 3)

	answer, err := p.Process(context.Background(), testTask())
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Len(t, stub.prompts, 3)
	assert.Len(t, *waits, 2)
	assert.Equal(t, models.ConfidenceHigh, answer.BackgroundColor.Confidence)
	assert.Equal(t, "warm beige", answer.BackgroundColor.Suggestion)
	assert.Equal(t, []string{"check contrast"}, answer.ReviewPoints)
}

func TestProcessGivesUp(t *testing.T) {
	stub := &stubClient{steps: []step{{err: errors.New("unauthorized")}}}
	p, waits := newTestProcessor(stub, 2)

	answer, err := p.Process(context.Background(), testTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Nil(t, answer)

	assert.Len(t, stub.prompts, 2)
	assert.Equal(t, []time.Duration{time.Millisecond}, *waits)
}

func TestProcessSingleAttemptNeverWaits(t *testing.T) {
	stub := &stubClient{steps: []step{{err: errors.New("boom")}}}
	p, waits := newTestProcessor(stub, 1)

	_, err := p.Process(context.Background(), testTask())
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Len(t, stub.prompts, 1)
	assert.Empty(t, *waits)
}

func TestProcessMalformedOutputCountsAsFailure(t *testing.T) {
	stub := &stubClient{steps: []step{
		{content: "Sure! Here is my analysis."},
		{content: `{"overall_confidence": "medium"}`},
		{content: "```json\n" + validAnswer + "\n```"},
	}}
	p, waits := newTestProcessor(stub, 3)

	answer, err := p.Process(context.Background(), testTask())
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Len(t, stub.prompts, 3)
	assert.Len(t, *waits, 2)
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	stub := &stubClient{steps: []step{{err: errors.New("timeout")}}}
	p := New(stub, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	p.onWait = func(models.TaskID, int, time.Duration) { cancel() }

	_, err := p.Process(ctx, testTask())
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
	assert.Len(t, stub.prompts, 1)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testTask())

	assert.Contains(t, prompt.System, "design consultant")
	assert.Contains(t, prompt.Text, "Brief: Poster for a jazz night")
	assert.Contains(t, prompt.Text, `"overall_confidence"`)
	assert.Equal(t, []string{"https://img/1.png", "https://img/2.png", "https://img/3.png"}, prompt.Images)
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain json", content: validAnswer},
		{name: "fenced json", content: "```json\n" + validAnswer + "\n```"},
		{name: "empty", content: "  ", wantErr: true},
		{name: "prose", content: "I cannot help with that.", wantErr: true},
		{name: "missing field", content: `{"background_color": {"suggestion": "red", "confidence": "low"}}`, wantErr: true},
		{
			name:    "bad confidence",
			content: `{"background_color": {"suggestion": "red", "confidence": "certain"}, "text_elements": {"suggestions": [], "confidence": "low"}, "visual_elements": {"suggestions": [], "confidence": "low"}, "review_points": [], "overall_confidence": "low"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := ParseAnswer(tt.content)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ConfidenceMedium, answer.OverallConfidence)
		})
	}
}
