package telegram

import (
	"testing"
	"time"

	"github.com/mymmrac/telego"
)

func TestNextBackoffDoublesUpToMax(t *testing.T) {
	d := initialBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
		if d > maxBackoff {
			t.Fatalf("backoff exceeded max: %v", d)
		}
	}
	if d != maxBackoff {
		t.Errorf("expected backoff to saturate at max, got %v", d)
	}
}

func TestNextBackoffStartsFromOneSecond(t *testing.T) {
	if got := nextBackoff(initialBackoff); got != 2*time.Second {
		t.Errorf("got %v", got)
	}
}

func TestTelegramAuthorIDFromMessage(t *testing.T) {
	u := telego.Update{Message: &telego.Message{From: &telego.User{ID: 7}}}
	id, ok := telegramAuthorID(u)
	if !ok || id != "7" {
		t.Errorf("got (%q, %v)", id, ok)
	}
}

func TestTelegramAuthorIDNoIdentifiableSender(t *testing.T) {
	u := telego.Update{Message: &telego.Message{}}
	if _, ok := telegramAuthorID(u); ok {
		t.Error("expected no identifiable author")
	}
}
