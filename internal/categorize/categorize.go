// Package categorize assigns exactly one category to an article from an
// ordered keyword table. The order is load-bearing: specific, high-severity
// buckets sit above broad ones so a single alarming keyword is never masked
// by a generic match further down.
package categorize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fallback is used when no rule matches and the source has no default.
const Fallback = "general"

// Rule binds one category slug to the keywords that select it.
type Rule struct {
	Slug     string
	Keywords []string
}

// Rules is the classification table, evaluated top to bottom.
var Rules = []Rule{
	{
		Slug: "ai_security",
		Keywords: []string{
			"shadow ai", "llm attack", "ai security", "model poisoning",
			"prompt injection", "ai agent", "saas ai", "copilot security",
			"generative ai", "deepfake", "ai-generated malware",
		},
	},
	{
		Slug: "vulnerabilities",
		Keywords: []string{
			"cve-", "nvd", "patch tuesday", "zero-day", "zero day",
			"exploit", "vulnerability", "advisory", "cvss", "rce", "remote code",
		},
	},
	{
		Slug: "malware",
		Keywords: []string{
			"ransomware", "trojan", "botnet", "spyware", "wiper",
			"rat ", "dropper", "malware", "backdoor", "stealer", "rootkit",
		},
	},
	{
		Slug: "threat_intel",
		Keywords: []string{
			"apt", "threat actor", "campaign", "nation-state", "ioc",
			"ttps", "mitre att&ck", "threat intelligence", "threat group",
		},
	},
	{
		Slug: "appsec",
		Keywords: []string{
			"xss", "sql injection", "owasp", "api security", "web app",
			"sast", "dast", "burp", "penetration test", "csrf", "ssrf",
		},
	},
	{
		Slug: "cloud_security",
		Keywords: []string{
			"aws", "azure", "gcp", "cloud", "s3 bucket", "iam",
			"kubernetes", "container", "docker", "terraform", "misconfiguration",
		},
	},
	{
		Slug: "compliance",
		Keywords: []string{
			"gdpr", "hipaa", "pci dss", "iso 27001", "nist",
			"regulation", "audit", "compliance", "sox", "dora",
		},
	},
	{
		Slug: "privacy",
		Keywords: []string{
			"data breach", "privacy", "tracking", "surveillance",
			"personal data", "leak", "deanonymization", "biometric",
		},
	},
}

// bodyWindow limits how much body text participates in matching; keywords
// buried deep in an article say little about what the story is about.
const bodyWindow = 500

// Classify returns the slug of the first matching rule. When nothing
// matches it falls back to the source default, then to Fallback.
func Classify(title, body, sourceDefault string) string {
	if len(body) > bodyWindow {
		body = body[:bodyWindow]
	}
	text := strings.ToLower(title + " " + body)

	for _, rule := range Rules {
		if matchesAny(text, rule.Keywords) {
			return rule.Slug
		}
	}

	if sourceDefault != "" {
		return sourceDefault
	}
	return Fallback
}

// matchesAny applies the corpus matching discipline: phrases and long
// keywords match as substrings, short tokens only on word boundaries so
// "apt" does not fire inside "adaptive".
func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") || strings.Contains(k, "-") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		if utf8.RuneCountInString(k) <= 3 {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			if re.MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// SeedCategory describes one category record for first-run seeding,
// listed in the same priority order as Rules.
type SeedCategory struct {
	Slug  string
	Name  string
	Color string
}

var SeedCategories = []SeedCategory{
	{"ai_security", "AI Security", "#6610f2"},
	{"vulnerabilities", "Vulnerabilities", "danger"},
	{"malware", "Malware", "warning"},
	{"threat_intel", "Threat Intel", "purple"},
	{"appsec", "App Security", "primary"},
	{"cloud_security", "Cloud Security", "info"},
	{"compliance", "Compliance", "success"},
	{"privacy", "Privacy", "secondary"},
}
