package chat

import "testing"

func TestColorize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"&aGreen", "§aGreen"},
		{"&CRed", "§cRed"},
		{"&zNot a code", "&zNot a code"},
		{"trailing &", "trailing &"},
		{"&6Gold &lbold&r done", "§6Gold §lbold§r done"},
		{"&&a", "&§a"},
	}
	for _, tt := range tests {
		if got := Colorize(tt.in); got != tt.want {
			t.Errorf("Colorize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStrip(t *testing.T) {
	if got := Strip(Colorize("&aUsage: &f/pt help")); got != "Usage: /pt help" {
		t.Fatalf("Strip = %q", got)
	}
	if got := Strip("§"); got != "" {
		t.Fatalf("Strip(lone section) = %q", got)
	}
	if got := Strip("no codes"); got != "no codes" {
		t.Fatalf("Strip = %q", got)
	}
}

func TestANSI(t *testing.T) {
	got := ANSI(Colorize("&cerror"))
	if got != "\x1b[91merror\x1b[0m" {
		t.Fatalf("ANSI = %q", got)
	}
	if ANSI("plain") != "plain" {
		t.Fatal("plain text should pass through")
	}
}
