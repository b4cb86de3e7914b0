package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/engine"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/app"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

type fixedGen struct{}

func (fixedGen) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, `"rewritten"`) {
		return `{"rewritten": "tensorrt int8 calibration", "reasoning": ""}`, nil
	}
	return `{"relevance": 0.9, "completeness": 0.8, "grounded": true, "reasoning": "good"}`, nil
}

type fixedRetriever struct{}

func (fixedRetriever) Name() string { return "rag" }

func (fixedRetriever) Retrieve(context.Context, string, int, float64) ([]retrieval.Record, error) {
	return []retrieval.Record{{"text": "INT8 calibration", "source_uri": "https://x/1", "distance": 0.2}}, nil
}

func testServer() *Server {
	ecfg := config.EngineConfig{
		TopKDefault:       10,
		DistanceThreshold: 0.7,
		AdequacyThreshold: 0.7,
		MaxRefinements:    2,
		RelevanceWeight:   0.5,
	}
	a := &app.App{
		Cfg:    &config.Config{Engine: ecfg},
		Engine: engine.New(ecfg, fixedGen{}, fixedRetriever{}),
		Logger: log.New(log.Writer(), "[APP] ", log.LstdFlags),
	}
	return NewServer(a)
}

func roundTrip(t *testing.T, req string) rpcResp {
	t.Helper()
	var out bytes.Buffer
	if err := testServer().Serve(strings.NewReader(req), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var resp rpcResp
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", out.String(), err)
	}
	return resp
}

func TestToolsListAdvertisesSearch(t *testing.T) {
	resp := roundTrip(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error)
	}
	tools, ok := resp.Result["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatalf("no tools advertised: %v", resp.Result)
	}
	first, _ := tools[0].(map[string]any)
	if first["name"] != "search" {
		t.Fatalf("expected search tool first, got %v", first["name"])
	}
}

func TestToolsCallSearch(t *testing.T) {
	resp := roundTrip(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"search","arguments":{"query":"how does int8 calibration work","method":"rag","top_k":5}}}`)
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error)
	}
	result, ok := resp.Result["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result: %v", resp.Result)
	}
	grade, ok := result["grade"].(map[string]any)
	if !ok || grade["grounded"] != true {
		t.Fatalf("expected grounded grade, got %v", result["grade"])
	}
}

func TestMalformedLineDoesNotStallLoop(t *testing.T) {
	input := "{not json\n" +
		`{"jsonrpc":"2.0","id":7,"method":"tools/list"}` + "\n" +
		"}}}\n"
	var out bytes.Buffer
	if err := testServer().Serve(strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var resp rpcResp
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", out.String(), err)
	}
	if resp.Error != nil || resp.Result["tools"] == nil {
		t.Fatalf("request after malformed line not served: %+v", resp)
	}
}

func TestToolsCallRequiresQuery(t *testing.T) {
	resp := roundTrip(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"search","arguments":{}}}`)
	if resp.Error == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestUnknownToolAndMethod(t *testing.T) {
	resp := roundTrip(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`)
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	resp = roundTrip(t, `{"jsonrpc":"2.0","id":5,"method":"bogus"}`)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
}
