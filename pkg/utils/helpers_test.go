package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "single", input: []string{"localhost:9000"}, want: []string{"localhost:9000"}},
		{name: "comma separated", input: []string{"a:9000, b:9000 ,c:9000"}, want: []string{"a:9000", "b:9000", "c:9000"}},
		{name: "repeated and mixed", input: []string{"a", "b,c"}, want: []string{"a", "b", "c"}},
		{name: "drops empty", input: []string{" , a,, "}, want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCSV(tt.input...))
		})
	}
}
