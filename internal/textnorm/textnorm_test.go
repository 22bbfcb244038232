package textnorm

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Đường Huyết":   "duong huyet",
		"CHỮA KHỎI":     "chua khoi",
		"plain ascii":   "plain ascii",
		"Cà phê sữa đá": "ca phe sua da",
	}
	for input, want := range cases {
		if got := Fold(input); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFoldDecomposedInput(t *testing.T) {
	decomposed := "chu\u031b\u0303a"
	if got := Fold(decomposed); got != "chua" {
		t.Fatalf("expected decomposed input to fold to chua, got %q", got)
	}
}

func TestFoldRune(t *testing.T) {
	if got := FoldRune('Ữ'); got != 'u' {
		t.Fatalf("expected u, got %q", got)
	}
	if got := FoldRune('đ'); got != 'd' {
		t.Fatalf("expected d, got %q", got)
	}
	if got := FoldRune('\u0303'); got != 0 {
		t.Fatalf("expected combining mark to fold to 0, got %q", got)
	}
	if got := FoldRune('A'); got != 'a' {
		t.Fatalf("expected a, got %q", got)
	}
}
