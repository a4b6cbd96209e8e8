package ops

import "testing"

func TestNewTelegramNotifierRejectsEmptyToken(t *testing.T) {
	if _, err := NewTelegramNotifier("", 0); err == nil {
		t.Fatal("expected an error creating a bot with an empty token")
	}
}
