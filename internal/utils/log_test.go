package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		limit  int
		expect string
	}{
		{input: "Build LLM agents", limit: 0, expect: ""},
		{input: "Build LLM agents", limit: 16, expect: "Build LLM agents"},
		{input: "Build LLM agents", limit: 9, expect: "Build LLM..."},
		{input: "\n  {\"has_llm\": true}  \n", limit: 100, expect: "{\"has_llm\": true}"},
		{input: "Инженер по ML", limit: 7, expect: "Инженер..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
