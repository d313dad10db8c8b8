package nodes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/switchboard/pkg/adapters/scripted"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var prompts = nodes.DefaultPrompts("")

func seed(text string) domain.Conversation {
	return domain.NewConversation(domain.UserMessage(text))
}

func TestSupervisor_RoutesToChosenSpecialist(t *testing.T) {
	for _, choice := range []string{"enhancer", "request_grader", "researcher", "coder"} {
		t.Run(choice, func(t *testing.T) {
			r := scripted.NewReasoner().Choose(nodes.Supervisor, choice, "because")
			cmd, err := nodes.NewSupervisor(r, prompts).Invoke(context.Background(), seed("q"))
			require.NoError(t, err)

			assert.Equal(t, choice, cmd.Next)
			require.Len(t, cmd.Update, 1)
			assert.Equal(t, nodes.Supervisor, cmd.Update[0].Name)
			assert.Equal(t, "because", cmd.Update[0].Content)
		})
	}
}

func TestSupervisor_OffersClosedSet(t *testing.T) {
	r := scripted.NewReasoner().Choose(nodes.Supervisor, "coder", "")
	sup := nodes.NewSupervisor(r, prompts)
	_, err := sup.Invoke(context.Background(), seed("q"))
	require.NoError(t, err)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"enhancer", "request_grader", "researcher", "coder"}, calls[0].Choices)
	assert.ElementsMatch(t, []string{"enhancer", "request_grader", "researcher", "coder"}, sup.Targets())
	assert.Equal(t, []nodes.SupervisorChoice{nodes.ChooseEnhancer, nodes.ChooseRequestGrader, nodes.ChooseResearcher, nodes.ChooseCoder}, sup.Choices())
}

func TestDecision_ContractViolation(t *testing.T) {
	for _, bad := range []string{"validator", "Coder", "", "input_loader"} {
		t.Run(bad, func(t *testing.T) {
			r := scripted.NewReasoner().Choose(nodes.Supervisor, bad, "?")
			_, err := nodes.NewSupervisor(r, prompts).Invoke(context.Background(), seed("q"))

			var cv *domain.ContractViolation
			require.True(t, errors.As(err, &cv), "got %v", err)
			assert.Equal(t, nodes.Supervisor, cv.Node)
			assert.Equal(t, bad, cv.Got)
		})
	}
}

func TestDecision_TrimsWhitespace(t *testing.T) {
	r := scripted.NewReasoner().Choose(nodes.Validator, "  finish\n", " fine ")
	cmd, err := nodes.NewValidator(r, prompts).Invoke(context.Background(), seed("q"))
	require.NoError(t, err)
	assert.True(t, cmd.Terminal())
	assert.Equal(t, "fine", cmd.Update[0].Content)
}

func TestDecision_PropagatesReasonerError(t *testing.T) {
	cause := domain.Unavailable("reasoner", errors.New("timeout"))
	r := scripted.NewReasoner().Fail(nodes.Supervisor, cause)
	_, err := nodes.NewSupervisor(r, prompts).Invoke(context.Background(), seed("q"))
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}

func TestRequestGrader(t *testing.T) {
	t.Run("in scope", func(t *testing.T) {
		r := scripted.NewReasoner().Choose(nodes.RequestGrader, "in_scope", "QC question")
		cmd, err := nodes.NewRequestGrader(r, prompts).Invoke(context.Background(), seed("Review QC metrics"))
		require.NoError(t, err)
		assert.Equal(t, nodes.Supervisor, cmd.Next)
	})

	t.Run("out of scope", func(t *testing.T) {
		r := scripted.NewReasoner().Choose(nodes.RequestGrader, "out_of_scope", "Weather is not covered.")
		cmd, err := nodes.NewRequestGrader(r, prompts).Invoke(context.Background(), seed("What is the weather today?"))
		require.NoError(t, err)

		assert.True(t, cmd.Terminal())
		require.Len(t, cmd.Update, 1)
		assert.Equal(t, nodes.RequestGrader, cmd.Update[0].Name)
		assert.Contains(t, cmd.Update[0].Content, "can't take on this request")
		assert.Contains(t, cmd.Update[0].Content, "Weather is not covered.")
	})
}

func TestValidator_SeesRequestAndLastOnly(t *testing.T) {
	conv := domain.NewConversation(
		domain.UserMessage("original request"),
		domain.AssistantMessage("supervisor", "go research"),
		domain.AssistantMessage("researcher", "intermediate"),
		domain.AssistantMessage("coder", "latest output"),
	)
	r := scripted.NewReasoner().Choose(nodes.Validator, "supervisor", "not done")
	cmd, err := nodes.NewValidator(r, prompts).Invoke(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, nodes.Supervisor, cmd.Next)

	history := r.Calls()[0].History
	require.Len(t, history, 2)
	assert.Equal(t, "original request", history[0].Content)
	assert.Equal(t, "latest output", history[1].Content)
}

func TestValidator_AnchorsOnFirstMessage(t *testing.T) {
	conv := domain.NewConversation(
		domain.UserMessage("original request"),
		domain.AssistantMessage("coder", "a1"),
		domain.UserMessage("follow-up"),
		domain.AssistantMessage("coder", "a2"),
	)
	r := scripted.NewReasoner().Choose(nodes.Validator, "finish", "ok")
	_, err := nodes.NewValidator(r, prompts).Invoke(context.Background(), conv)
	require.NoError(t, err)

	history := r.Calls()[0].History
	require.Len(t, history, 2)
	assert.Equal(t, "original request", history[0].Content)
	assert.Equal(t, "a2", history[1].Content)
}
