package reasoning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/errors"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/mock"
)

func TestBuildPrompt(t *testing.T) {
	prompt := reasoning.BuildPrompt([]string{"USER PROFILE", "RELEVANT MEMORIES"}, "what now?")
	assert.Equal(t, "USER PROFILE\nRELEVANT MEMORIES\nUser question: what now?", prompt)
	assert.Equal(t, "\nUser question: hi", reasoning.BuildPrompt(nil, "hi"))
}

func TestService_Generate(t *testing.T) {
	engine := mock.NewMockEngine(mock.WithDefaultResponse("the reply"))
	svc := reasoning.NewService(engine)

	reply, err := svc.Generate(context.Background(), []string{"ctx"}, "question")
	require.NoError(t, err)
	assert.Equal(t, "the reply", reply)

	calls := engine.GetCallHistory()
	require.Len(t, calls, 1)
	assert.Equal(t, "ctx\nUser question: question", calls[0].Args[1])

	engine.SetShouldError(true)
	_, err = svc.Generate(context.Background(), nil, "q")
	assert.Error(t, err)
}

func TestService_Stream(t *testing.T) {
	engine := mock.NewMockEngine(mock.WithDefaultResponse("one two three"))
	svc := reasoning.NewService(engine)

	ch, err := svc.Stream(context.Background(), []string{"ctx"}, "q")
	require.NoError(t, err)
	text, err := reasoning.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "one two three", text)
}

func TestService_Summarize(t *testing.T) {
	engine := mock.NewMockEngine()
	svc := reasoning.NewService(engine)

	engine.AddResponse("Summarize the following text", "  short summary  ")
	summary, err := svc.Summarize(context.Background(), "long text", 40)
	require.NoError(t, err)
	assert.Equal(t, "short summary", summary)

	var opts reasoning.Options
	for _, c := range engine.GetCallHistory() {
		if c.Method == "Process" {
			prompt := c.Args[1].(string)
			assert.Contains(t, prompt, "Text: long text\nSummary:")
			opts = reasoning.ApplyOptions(c.Args[2].([]reasoning.Option)...)
		}
	}
	assert.Equal(t, 40, opts.MaxTokens)

	engine.AddResponse("Summarize the following text", "   ")
	_, err = svc.Summarize(context.Background(), "long text", 40)
	assert.True(t, errors.Is(err, errors.ErrSummarization))

	engine.SetShouldError(true)
	_, err = svc.Summarize(context.Background(), "long text", 40)
	assert.True(t, errors.Is(err, errors.ErrSummarization))
}

func TestService_Classify(t *testing.T) {
	engine := mock.NewMockEngine(mock.WithDefaultResponse(`{"type":"goal","importance":0.8}`))
	svc := reasoning.NewService(engine)
	ctx := context.Background()

	raw, err := svc.Classify(ctx, "I want to run a marathon", false)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"goal","importance":0.8}`, raw)

	_, err = svc.Classify(ctx, "again", true)
	require.NoError(t, err)

	calls := engine.GetCallHistory()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Args[1], "Return ONLY JSON")
	assert.Contains(t, calls[1].Args[1], "exactly one JSON object")

	engine.SetShouldError(true)
	_, err = svc.Classify(ctx, "x", false)
	assert.True(t, errors.Is(err, errors.ErrClassification))
}
