package commands

import (
	"bufio"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}
	for _, tt := range tests {
		if got := confirm(bufio.NewReader(strings.NewReader(tt.input)), ""); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestConfirmSharesReader(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("y\nn\n"))
	if !confirm(in, "") {
		t.Error("First answer should be yes")
	}
	if confirm(in, "") {
		t.Error("Second answer should be no")
	}
}
