package assistant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/llm"
	"github.com/oggyb/pulse/internal/service/assistant"
	"github.com/oggyb/pulse/internal/testutil"
)

func TestChat(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.User(t, 1, "Anna")
	env.User(t, 2, "Bob")
	pair := env.JoinedPair(t, "pair-1", 1, 2)

	mock := &llm.Mock{Replies: []string{"first answer", "second answer"}}
	svc := assistant.NewService(env.App, mock)

	_, err := svc.Chat(ctx, pair.ID, 1, "hi")
	assert.ErrorIs(t, err, svcErr.ErrPremium)
	assert.Empty(t, mock.Calls)

	env.Premium(t, 1, env.App.Now().Add(24*time.Hour))

	_, err = svc.Chat(ctx, pair.ID, 1, "   ")
	assert.Equal(t, svcErr.KindInvalidArgument, svcErr.KindOf(err))

	reply, err := svc.Chat(ctx, pair.ID, 1, "We argue about chores")
	require.NoError(t, err)
	assert.Equal(t, "first answer", reply.Message)
	assert.Equal(t, db.RoleModel, reply.Role)

	env.Clock.Advance(time.Minute)
	_, err = svc.Chat(ctx, pair.ID, 1, "What should we do?")
	require.NoError(t, err)

	require.Len(t, mock.Calls, 2)
	assert.Equal(t, assistant.SystemPrompt("en"), mock.Calls[1].System)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Text: "We argue about chores"},
		{Role: llm.RoleModel, Text: "first answer"},
	}, mock.Calls[1].History)

	history, err := svc.History(ctx, pair.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "We argue about chores", history[0].Message)
	assert.Equal(t, "second answer", history[3].Message)
}

func TestChat_UpstreamFailureKeepsQuestion(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.User(t, 1, "Anna")
	env.User(t, 2, "Bob")
	pair := env.JoinedPair(t, "pair-1", 1, 2)
	env.Premium(t, 1, env.App.Now().Add(time.Hour))

	svc := assistant.NewService(env.App, &llm.Mock{Err: errors.New("quota exceeded")})
	_, err := svc.Chat(ctx, pair.ID, 1, "hello")
	assert.Equal(t, svcErr.KindUpstream, svcErr.KindOf(err))

	history, err := svc.History(ctx, pair.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, db.RoleUser, history[0].Role)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, assistant.SystemPrompt("ru"), assistant.SystemPrompt("uk"))
	assert.NotEqual(t, assistant.SystemPrompt("ru"), assistant.SystemPrompt("EN"))
}
