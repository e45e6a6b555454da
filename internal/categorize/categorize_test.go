package categorize

import "testing"

func TestClassifyTableOrder(t *testing.T) {
	// An article matching several rules takes the highest one. Malware sits
	// above compliance, so a ransomware story with GDPR fallout is malware.
	got := Classify("Ransomware gang fined under GDPR after hospital breach", "", "")
	if got != "malware" {
		t.Errorf("Classify = %q, want malware", got)
	}

	// ai_security outranks vulnerabilities.
	got = Classify("Prompt injection exploit chain hits agent frameworks", "", "")
	if got != "ai_security" {
		t.Errorf("Classify = %q, want ai_security", got)
	}
}

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  string
	}{
		{"cve id", "CVE-2024-12345: critical flaw in router firmware", "", "vulnerabilities"},
		{"zero day phrase", "Actively exploited zero-day in popular CMS", "", "vulnerabilities"},
		{"body match", "Weekly roundup", "A new botnet is recruiting unpatched cameras.", "malware"},
		{"data breach", "Retailer confirms data breach affecting 2M customers", "", "privacy"},
		{"kubernetes", "Kubernetes RBAC mistakes keep leaking clusters", "", "cloud_security"},
		{"sql injection", "SQL injection in legacy billing portal", "", "appsec"},
		{"nation state", "Nation-state campaign targets telecoms", "", "threat_intel"},
		{"iso", "What ISO 27001 certification actually buys you", "", "compliance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.title, tt.body, ""); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestClassifyWordBoundary(t *testing.T) {
	// Short tokens only fire on word boundaries: "apt" must not match
	// inside "adaptive", "rce" must not match inside "force".
	if got := Classify("Adaptive authentication rollout guide", "", ""); got != Fallback {
		t.Errorf("Classify(adaptive) = %q, want %q", got, Fallback)
	}
	if got := Classify("Sales force reorganisation announced", "", ""); got != Fallback {
		t.Errorf("Classify(force) = %q, want %q", got, Fallback)
	}
	if got := Classify("APT group resurfaces with new tooling", "", ""); got != "threat_intel" {
		t.Errorf("Classify(APT) = %q, want threat_intel", got)
	}
}

func TestClassifyFallbacks(t *testing.T) {
	if got := Classify("Quarterly earnings call", "", "cloud_security"); got != "cloud_security" {
		t.Errorf("source default ignored, got %q", got)
	}
	if got := Classify("Quarterly earnings call", "", ""); got != Fallback {
		t.Errorf("fallback = %q, want %q", got, Fallback)
	}
}

func TestClassifyBodyWindow(t *testing.T) {
	// Keywords beyond the body window do not participate.
	padding := make([]byte, bodyWindow)
	for i := range padding {
		padding[i] = 'x'
	}
	body := string(padding) + " ransomware"

	if got := Classify("Company newsletter", body, ""); got != Fallback {
		t.Errorf("keyword past window matched, got %q", got)
	}
}

func TestSeedCategoriesMatchRules(t *testing.T) {
	if len(SeedCategories) != len(Rules) {
		t.Fatalf("seed list has %d entries, rules have %d", len(SeedCategories), len(Rules))
	}
	for i, rule := range Rules {
		if SeedCategories[i].Slug != rule.Slug {
			t.Errorf("seed[%d] = %q, rule = %q", i, SeedCategories[i].Slug, rule.Slug)
		}
	}
}
