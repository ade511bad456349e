package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeModelJSON(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        string
		wantApplied bool
	}{
		{
			name:        "clean JSON passes through",
			raw:         `{"title":"t"}`,
			want:        `{"title":"t"}`,
			wantApplied: false,
		},
		{
			name:        "surrounding whitespace",
			raw:         "  {\"title\":\"t\"}\n",
			want:        `{"title":"t"}`,
			wantApplied: true,
		},
		{
			name:        "json code fence",
			raw:         "```json\n{\"title\":\"t\"}\n```",
			want:        `{"title":"t"}`,
			wantApplied: true,
		},
		{
			name:        "bare code fence",
			raw:         "```\n{\"title\":\"t\"}\n```",
			want:        `{"title":"t"}`,
			wantApplied: true,
		},
		{
			name:        "leading prose before the object",
			raw:         "Sure! Here is the script:\n{\"title\":\"t\"} Hope this helps.",
			want:        `{"title":"t"}`,
			wantApplied: true,
		},
		{
			name:        "trailing commas",
			raw:         `{"scenes":[{"narration":"a",},],}`,
			want:        `{"scenes":[{"narration":"a"}]}`,
			wantApplied: true,
		},
		{
			name:        "fence and trailing comma together",
			raw:         "```json\n{\"title\":\"t\",}\n```",
			want:        `{"title":"t"}`,
			wantApplied: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := NormalizeModelJSON(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantApplied, applied)
		})
	}
}
