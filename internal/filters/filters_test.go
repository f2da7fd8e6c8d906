package filters

import "testing"

func TestUserAllowlistEmptyPermitsAll(t *testing.T) {
	f := UserAllowlist(nil, func(update interface{}) (string, bool) { return "anyone", true })
	if !f("update") {
		t.Error("empty allowlist should permit all")
	}
}

func TestUserAllowlistAdmitsListedUser(t *testing.T) {
	f := UserAllowlist([]string{"alice"}, func(update interface{}) (string, bool) { return update.(string), true })
	if !f("alice") {
		t.Error("alice should be admitted")
	}
	if f("bob") {
		t.Error("bob should be rejected")
	}
}

func TestUserAllowlistAdmitsSystemEvents(t *testing.T) {
	f := UserAllowlist([]string{"alice"}, func(update interface{}) (string, bool) { return "", false })
	if !f("system-event") {
		t.Error("events without identifiable author should be admitted")
	}
}

func TestAllComposesByAnd(t *testing.T) {
	alwaysTrue := func(interface{}) bool { return true }
	alwaysFalse := func(interface{}) bool { return false }

	if !All(alwaysTrue, alwaysTrue)("x") {
		t.Error("expected true AND true = true")
	}
	if All(alwaysTrue, alwaysFalse)("x") {
		t.Error("expected true AND false = false")
	}
	if !All()("x") {
		t.Error("empty filter list should admit")
	}
}
