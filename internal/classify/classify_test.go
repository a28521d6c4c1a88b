package classify_test

import (
	"testing"

	"github.com/casevox/casevox/internal/classify"
)

func TestClassify_RemoteAccessScam(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("Hello this is support. Please download anydesk and give me the numbers on your screen now.")

	if got.Category != classify.CategoryRemoteAccess {
		t.Errorf("Category = %q, want %q", got.Category, classify.CategoryRemoteAccess)
	}
	if !got.Flags.RemoteAccess {
		t.Error("Flags.RemoteAccess = false, want true")
	}
	if !got.Flags.AppInstall {
		t.Error("Flags.AppInstall = false, want true")
	}
	if !got.Flags.Urgency {
		t.Error("Flags.Urgency = false, want true")
	}
	if got.Flags.RequestsCodes {
		t.Error("Flags.RequestsCodes = true, want false")
	}
	// remote access (35) + app install (20) + urgency (8) + support combo (5).
	if want := 68; got.RiskScore != want {
		t.Errorf("RiskScore = %d, want %d", got.RiskScore, want)
	}
}

func TestClassify_PaymentCategory(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("i want to withdraw money from my bank account")

	if got.Category != classify.CategoryPayment {
		t.Errorf("Category = %q, want %q", got.Category, classify.CategoryPayment)
	}
	if !got.Flags.PaymentRequest {
		t.Error("Flags.PaymentRequest = false, want true")
	}
	if want := 15; got.RiskScore != want {
		t.Errorf("RiskScore = %d, want %d", got.RiskScore, want)
	}
}

func TestClassify_DigitRunFlagsRequestsCodes(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("please read me the number 451123 on your screen")

	if !got.Flags.RequestsCodes {
		t.Error("Flags.RequestsCodes = false, want true for a long digit run")
	}
	if want := 20; got.RiskScore != want {
		t.Errorf("RiskScore = %d, want %d", got.RiskScore, want)
	}
}

func TestClassify_FuzzyKeywordTakesSTTMisspelling(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("can you open anydesc for me please")

	if !got.Flags.RemoteAccess {
		t.Error("Flags.RemoteAccess = false, want true for fuzzy anydesk hit")
	}
	if got.Category != classify.CategoryRemoteAccess {
		t.Errorf("Category = %q, want %q", got.Category, classify.CategoryRemoteAccess)
	}
}

func TestClassify_FuzzyThresholdDisablesFuzzy(t *testing.T) {
	t.Parallel()

	// A threshold above 1 makes every fuzzy comparison fail, so only exact
	// substring hits remain.
	c := classify.New(classify.WithFuzzyThreshold(1.01))
	got := c.Classify("can you open anydesc for me please")

	if got.Flags.RemoteAccess {
		t.Error("Flags.RemoteAccess = true, want false with fuzzy disabled")
	}
	if got.Category != classify.CategoryOther {
		t.Errorf("Category = %q, want %q", got.Category, classify.CategoryOther)
	}
	if got.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", got.RiskScore)
	}
}

func TestClassify_RiskScoreCappedAt100(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("install anydesk now scan the qr code to transfer 500 to support immediately")

	if got.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want 100 (cap)", got.RiskScore)
	}
	for name, flag := range map[string]bool{
		"remote_access":   got.Flags.RemoteAccess,
		"requests_codes":  got.Flags.RequestsCodes,
		"app_install":     got.Flags.AppInstall,
		"qr_scan":         got.Flags.QRScan,
		"payment_request": got.Flags.PaymentRequest,
		"urgency":         got.Flags.Urgency,
	} {
		if !flag {
			t.Errorf("flag %s = false, want true", name)
		}
	}
}

func TestClassify_BenignText(t *testing.T) {
	t.Parallel()

	c := classify.New()
	got := c.Classify("thank you for calling have a great day")

	if got.Category != classify.CategoryOther {
		t.Errorf("Category = %q, want %q", got.Category, classify.CategoryOther)
	}
	if got.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", got.RiskScore)
	}
	if got.Flags != (classify.Flags{}) {
		t.Errorf("Flags = %+v, want all false", got.Flags)
	}
}

func TestClassify_EmptyText(t *testing.T) {
	t.Parallel()

	c := classify.New()
	for _, text := range []string{"", "   ", "\n\t"} {
		got := c.Classify(text)
		if got.Category != classify.CategoryEmpty {
			t.Errorf("Classify(%q).Category = %q, want %q", text, got.Category, classify.CategoryEmpty)
		}
		if got.RiskScore != 0 {
			t.Errorf("Classify(%q).RiskScore = %d, want 0", text, got.RiskScore)
		}
	}
}
