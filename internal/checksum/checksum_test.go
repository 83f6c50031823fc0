package checksum

import (
	"regexp"
	"testing"
)

func TestSum_Format(t *testing.T) {
	got := Sum([]byte("hello"))
	if !regexp.MustCompile(`^sha256:[a-f0-9]{64}$`).MatchString(got) {
		t.Errorf("Sum = %q, want sha256:<64 hex>", got)
	}
}

func TestSum_Stable(t *testing.T) {
	if Sum([]byte("a")) != Sum([]byte("a")) {
		t.Error("same input produced different digests")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different input produced equal digests")
	}
}
