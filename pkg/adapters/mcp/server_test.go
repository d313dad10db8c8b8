package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/adapters/scripted"
	"github.com/aretw0/switchboard/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *switchboard.Engine) {
	t.Helper()
	r := scripted.NewReasoner().Choose(nodes.RequestGrader, "out_of_scope", "Not about QC.")
	g, err := nodes.Workflow(nodes.Deps{Reasoner: r})
	require.NoError(t, err)
	eng, err := switchboard.New(g)
	require.NoError(t, err)

	s := NewServer(eng)
	rpc(t, s, 0, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	})
	return s, eng
}

// rpc sends one JSON-RPC request and returns the decoded "result" member.
func rpc(t *testing.T, s *Server, id int, method string, params any) map[string]any {
	t.Helper()
	msg, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result map[string]any `json:"result"`
		Error  map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Nil(t, envelope.Error, "rpc error: %s", raw)
	return envelope.Result
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) map[string]any {
	t.Helper()
	return rpc(t, s, 1, "tools/call", map[string]any{"name": name, "arguments": args})
}

func TestTools_List(t *testing.T) {
	s, _ := newTestServer(t)

	res := rpc(t, s, 1, "tools/list", map[string]any{})
	tools, ok := res["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"ask", "resume", "history"}, names)
}

func TestAsk_ThenHistory(t *testing.T) {
	s, eng := newTestServer(t)

	res := callTool(t, s, "ask", map[string]any{"user": "alice", "request": "What is the weather?"})
	assert.NotEqual(t, true, res["isError"])

	structured, ok := res["structuredContent"].(map[string]any)
	require.True(t, ok, "structured content: %v", res)
	assert.Equal(t, true, structured["terminal"])
	assert.Equal(t, nodes.RequestGrader, structured["from"])
	assert.Contains(t, structured["reply"], "can only help with")

	res = callTool(t, s, "history", map[string]any{"user": "alice"})
	structured = res["structuredContent"].(map[string]any)
	want, err := eng.ThreadID("alice")
	require.NoError(t, err)
	assert.Equal(t, want, structured["thread_id"])
	assert.Len(t, structured["messages"], 2)
}

func TestResume_UnknownThreadIsToolError(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, "resume", map[string]any{"user": "nobody"})
	assert.Equal(t, true, res["isError"])
	assert.Contains(t, fmt.Sprint(res["content"]), "thread not found")
}

func TestGraphResource(t *testing.T) {
	s, _ := newTestServer(t)

	res := rpc(t, s, 2, "resources/read", map[string]any{"uri": GraphURI})
	contents, ok := res["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)

	first := contents[0].(map[string]any)
	assert.Equal(t, GraphURI, first["uri"])
	assert.Contains(t, first["text"], "graph TD")
	assert.Contains(t, first["text"], nodes.Supervisor)
}
