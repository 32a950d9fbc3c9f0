package domain

import (
	"testing"
)

func TestValidateTargetURL(t *testing.T) {
	valid := []string{
		"https://example.com/webhooks",
		"http://localhost:8080/hook",
		"https://sub.example.com:8443/a/b?c=d",
	}
	for _, u := range valid {
		if err := ValidateTargetURL(u); err != nil {
			t.Errorf("ValidateTargetURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{
		"",
		"ftp://example.com/hook",
		"file:///etc/passwd",
		"example.com/hook",
		"https://",
		"://bad",
	}
	for _, u := range invalid {
		if err := ValidateTargetURL(u); err == nil {
			t.Errorf("ValidateTargetURL(%q) = nil, want error", u)
		}
	}
}

func TestValidateEventFilter(t *testing.T) {
	if err := ValidateEventFilter([]EventType{EventPostCreated, EventUserDeleted}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := ValidateEventFilter(nil); err == nil {
		t.Error("empty filter should be rejected")
	}

	if err := ValidateEventFilter([]EventType{EventPostCreated, "post.exploded"}); err == nil {
		t.Error("unknown event type should be rejected")
	}
}

func TestSubscription_Matches(t *testing.T) {
	sub := Subscription{
		Events: []EventType{EventPostPublished, EventCommentCreated},
	}

	if !sub.Matches(EventPostPublished) {
		t.Error("should match post.published")
	}
	if sub.Matches(EventUserRegistered) {
		t.Error("should not match user.registered")
	}
}

func TestSubscription_RotateSecret(t *testing.T) {
	sub := Subscription{Secret: "whsec_old"}

	sub.RotateSecret("whsec_new")

	if sub.Secret != "whsec_new" {
		t.Error("secret should be replaced")
	}
	if !sub.HasSecret() {
		t.Error("subscription should report having a secret")
	}
}
