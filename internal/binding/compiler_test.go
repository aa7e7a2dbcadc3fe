package binding_test

import (
	"testing"

	"github.com/notifyhub/delivery-dispatch/internal/binding"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

func sub(rules ...domain.Rule) domain.Subscription {
	return domain.Subscription{
		Queue:    "email.a@b.com",
		Kind:     domain.BackendEmail,
		Identity: "a@b.com",
		Rules:    rules,
	}
}

func TestCompile_TopicRule(t *testing.T) {
	binds := binding.Compile(sub(domain.TopicRule{Topic: "org.release.announce"}))

	if len(binds) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(binds))
	}
	b := binds[0]
	if b.Exchange != domain.ExchangeTopic {
		t.Fatalf("expected topic exchange, got %s", b.Exchange)
	}
	if b.RoutingKey != "org.release.announce" {
		t.Fatalf("expected literal routing key, got %q", b.RoutingKey)
	}
	if len(b.Arguments) != 0 {
		t.Fatalf("topic bindings carry no arguments, got %v", b.Arguments)
	}
}

func TestCompile_HeaderRuleExpandsPerSeverity(t *testing.T) {
	// warning minimum: expect bindings for warning and error only
	binds := binding.Compile(sub(domain.HeaderRule{
		Key:         "pkg_kernel",
		MinSeverity: domain.SeverityWarning,
	}))

	if len(binds) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(binds))
	}
	wantSeverities := []domain.Severity{domain.SeverityWarning, domain.SeverityError}
	for i, b := range binds {
		if b.Exchange != domain.ExchangeHeaders {
			t.Fatalf("binding %d: expected headers exchange, got %s", i, b.Exchange)
		}
		if b.RoutingKey != "" {
			t.Fatalf("binding %d: header bindings carry no routing key", i)
		}
		if b.Arguments["x-match"] != "all" {
			t.Fatalf("binding %d: expected x-match=all, got %v", i, b.Arguments["x-match"])
		}
		if b.Arguments["pkg_kernel"] != true {
			t.Fatalf("binding %d: expected pkg_kernel=true, got %v", i, b.Arguments["pkg_kernel"])
		}
		if b.Arguments[domain.SeverityHeader] != int(wantSeverities[i]) {
			t.Fatalf("binding %d: expected severity %d, got %v",
				i, int(wantSeverities[i]), b.Arguments[domain.SeverityHeader])
		}
	}
}

func TestCompile_HeaderRuleBindingCount(t *testing.T) {
	counts := map[domain.Severity]int{
		domain.SeverityDebug:   4,
		domain.SeverityInfo:    3,
		domain.SeverityWarning: 2,
		domain.SeverityError:   1,
	}
	for min, want := range counts {
		binds := binding.Compile(sub(domain.HeaderRule{Key: "user_alice", MinSeverity: min}))
		if len(binds) != want {
			t.Fatalf("min severity %s: expected %d bindings, got %d", min, want, len(binds))
		}
	}
}

func TestCompile_MixedRulesKeepInputOrder(t *testing.T) {
	binds := binding.Compile(sub(
		domain.TopicRule{Topic: "org.build.failed"},
		domain.HeaderRule{Key: "pkg_kernel", MinSeverity: domain.SeverityError},
		domain.TopicRule{Topic: "org.build.complete"},
	))

	if len(binds) != 3 {
		t.Fatalf("expected 3 bindings, got %d", len(binds))
	}
	if binds[0].RoutingKey != "org.build.failed" {
		t.Fatalf("binding 0: expected first topic rule, got %q", binds[0].RoutingKey)
	}
	if binds[1].Exchange != domain.ExchangeHeaders {
		t.Fatalf("binding 1: expected header expansion in rule position")
	}
	if binds[2].RoutingKey != "org.build.complete" {
		t.Fatalf("binding 2: expected second topic rule, got %q", binds[2].RoutingKey)
	}
}

func TestCompile_NoRules(t *testing.T) {
	if binds := binding.Compile(sub()); len(binds) != 0 {
		t.Fatalf("expected no bindings, got %d", len(binds))
	}
}

func TestCompile_OutOfRangeSeverityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range severity")
		}
	}()
	binding.Compile(sub(domain.HeaderRule{Key: "pkg_kernel", MinSeverity: 99}))
}
