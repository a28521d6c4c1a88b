// Package classify implements keyword-driven categorisation and risk scoring
// of segmented call-center cases.
//
// Classification is heuristic by design: a fixed keyword table maps case text
// onto a category, a set of behavioural flags (remote-access requests, code
// harvesting, payment pressure, urgency), and an additive risk score capped
// at 100. Because the text comes from speech recognition, keyword hits are
// extended with Jaro-Winkler fuzzy matching so that misrecognised brand names
// ("any desk", "team viever") still trigger their flags.
//
// A Classifier is read-only after construction and safe for concurrent use.
package classify

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// Well-known category labels. ClassifyText returns CategoryOther when no
// category keyword matches at all.
const (
	CategoryRemoteAccess = "Remote Access Attempt"
	CategoryAppInstall   = "App Install / Payment App"
	CategoryVerification = "Verification / Identity"
	CategoryPayment      = "Payment / Withdrawal Request"
	CategorySupport      = "Support / Legit Help"
	CategoryOther        = "Other"
	CategoryEmpty        = "Empty"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// keyword hit. Only multi-character brand-like keywords are fuzzy-matched;
// short generic words would produce too many false positives.
const defaultFuzzyThreshold = 0.92

// minFuzzyKeywordLen is the minimum keyword length eligible for fuzzy
// matching.
const minFuzzyKeywordLen = 5

// categoryKeywords maps each category to the phrases that vote for it. The
// category with the most distinct keyword hits wins.
var categoryKeywords = map[string][]string{
	CategoryRemoteAccess: {"anydesk", "teamviewer", "remote", "access code", "access id", "give me the numbers"},
	CategoryAppInstall:   {"install", "download", "app", "cash app", "payment app", "qr code", "scan qr"},
	CategoryVerification: {"verify", "verification", "manager", "confirm your", "identity", "id"},
	CategoryPayment:      {"withdraw", "withdrawal", "transfer", "bank", "refund"},
	CategorySupport:      {"support", "help", "customer service", "finance department"},
}

// flag keyword tables; digitRun covers spoken numeric codes ("four five one
// one two three" is normalised to digits upstream by most STT engines).
var (
	digitRun = regexp.MustCompile(`\b\d{3,}\b`)

	remoteAccessKeywords   = []string{"anydesk", "teamviewer", "remote", "give me the numbers", "access code", "control your"}
	requestsCodesKeywords  = []string{"access code", "code", "pin"}
	appInstallKeywords     = []string{"download", "install", "get the app"}
	qrScanKeywords         = []string{"qr", "scan"}
	paymentRequestKeywords = []string{"withdraw", "transfer", "send money", "refund"}
	urgencyKeywords        = []string{"now", "immediately", "quick"}
)

// Risk weights per flag. Additive, capped at 100.
const (
	riskRemoteAccess   = 35
	riskAppInstall     = 20
	riskRequestsCodes  = 20
	riskPaymentRequest = 15
	riskQRScan         = 10
	riskUrgency        = 8

	// riskSupportCombo is added when remote access is requested under the
	// guise of a support call, the classic tech-support-scam pattern.
	riskSupportCombo = 5

	maxRiskScore = 100
)

// Flags are the behavioural indicators detected in a case.
type Flags struct {
	RemoteAccess   bool `json:"remote_access"`
	RequestsCodes  bool `json:"requests_codes"`
	AppInstall     bool `json:"app_install"`
	QRScan         bool `json:"qr_scan"`
	PaymentRequest bool `json:"payment_request"`
	Urgency        bool `json:"urgency"`
}

// Result is the classification outcome for one case.
type Result struct {
	// Category is the best-matching well-known category label.
	Category string `json:"category"`

	// Flags are the behavioural indicators found in the text.
	Flags Flags `json:"flags"`

	// RiskScore is the additive fraud-risk score in [0, 100].
	RiskScore int `json:"risk_score"`
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity for fuzzy
// keyword hits. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Classifier) {
		c.fuzzyThreshold = threshold
	}
}

// Classifier scores case text against the keyword tables.
// Safe for concurrent use.
type Classifier struct {
	fuzzyThreshold float64
}

// New returns a [Classifier] configured with the supplied options.
func New(opts ...Option) *Classifier {
	c := &Classifier{fuzzyThreshold: defaultFuzzyThreshold}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify analyses text and returns its category, flags, and risk score.
// Empty or whitespace-only text yields CategoryEmpty with zero risk.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Result{Category: CategoryEmpty}
	}
	words := strings.Fields(lower)

	flags := Flags{
		RemoteAccess:   c.anyKeyword(lower, words, remoteAccessKeywords),
		RequestsCodes:  digitRun.MatchString(lower) || c.anyKeyword(lower, words, requestsCodesKeywords),
		AppInstall:     c.anyKeyword(lower, words, appInstallKeywords),
		QRScan:         c.anyKeyword(lower, words, qrScanKeywords),
		PaymentRequest: c.anyKeyword(lower, words, paymentRequestKeywords),
		Urgency:        c.anyKeyword(lower, words, urgencyKeywords),
	}

	return Result{
		Category:  c.bestCategory(lower, words),
		Flags:     flags,
		RiskScore: riskScore(flags, lower),
	}
}

// bestCategory counts keyword hits per category and returns the label with
// the most. Ties resolve to the lexically smallest label so the result is
// deterministic; no hits at all resolve to CategoryOther.
func (c *Classifier) bestCategory(lower string, words []string) string {
	best := CategoryOther
	bestHits := 0
	for category, keywords := range categoryKeywords {
		hits := 0
		for _, kw := range keywords {
			if c.matchKeyword(lower, words, kw) {
				hits++
			}
		}
		switch {
		case hits > bestHits:
			best, bestHits = category, hits
		case hits == bestHits && hits > 0 && category < best:
			best = category
		}
	}
	return best
}

// anyKeyword reports whether any keyword in keywords matches the text.
func (c *Classifier) anyKeyword(lower string, words []string, keywords []string) bool {
	for _, kw := range keywords {
		if c.matchKeyword(lower, words, kw) {
			return true
		}
	}
	return false
}

// matchKeyword tests a single keyword: exact substring first, then a fuzzy
// per-word Jaro-Winkler pass for longer single-word keywords.
func (c *Classifier) matchKeyword(lower string, words []string, kw string) bool {
	if strings.Contains(lower, kw) {
		return true
	}
	if len(kw) < minFuzzyKeywordLen || strings.ContainsRune(kw, ' ') {
		return false
	}
	for _, w := range words {
		if matchr.JaroWinkler(w, kw, true) >= c.fuzzyThreshold {
			return true
		}
	}
	return false
}

// riskScore computes the additive risk score for a flag set.
func riskScore(flags Flags, lower string) int {
	score := 0
	if flags.RemoteAccess {
		score += riskRemoteAccess
	}
	if flags.AppInstall {
		score += riskAppInstall
	}
	if flags.RequestsCodes {
		score += riskRequestsCodes
	}
	if flags.PaymentRequest {
		score += riskPaymentRequest
	}
	if flags.QRScan {
		score += riskQRScan
	}
	if flags.Urgency {
		score += riskUrgency
	}
	if flags.RemoteAccess && strings.Contains(lower, "support") {
		score += riskSupportCombo
	}
	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score
}
