package domain

import "testing"

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from, to RecommendationStatus
		want     bool
	}{
		{StatusPending, StatusExecuted, true},
		{StatusPending, StatusManualRequired, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusExecuted, StatusCompleted, true},
		{StatusExecuted, StatusPending, false},
		{StatusManualRequired, StatusExecuted, false},
		{StatusCompleted, StatusPending, false},
		{StatusRejected, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []RecommendationStatus{StatusPending, StatusExecuted, StatusManualRequired, StatusRejected, StatusCompleted} {
		if !s.IsValid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if RecommendationStatus("settling").IsValid() {
		t.Fatal("expected unknown status to be invalid")
	}
}

func TestTierAtLeast(t *testing.T) {
	if !TierInstitutional.AtLeast(TierProfessional) {
		t.Fatal("institutional should satisfy professional")
	}
	if !TierStarter.AtLeast(TierStarter) {
		t.Fatal("starter should satisfy starter")
	}
	if TierFree.AtLeast(TierStarter) {
		t.Fatal("free should not satisfy starter")
	}
	if SubscriptionTier("vip").AtLeast(TierStarter) {
		t.Fatal("unknown tier should rank as free")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1000", 1000},
		{" 250.75 ", 250.75},
		{"0.00000001", 0.00000001},
		{"", 0},
		{"abc", 0},
		{"1,000", 0},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.want {
			t.Fatalf("ParseAmount(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestEntitlementErrorMessages(t *testing.T) {
	tierErr := &EntitlementError{RequiredTier: TierStarter, CurrentTier: TierFree}
	if tierErr.Error() != "requires starter plan, current plan is free" {
		t.Fatalf("unexpected tier error: %s", tierErr.Error())
	}
	quotaErr := &EntitlementError{RequiredTier: TierProfessional, CurrentTier: TierStarter, Used: 4, Limit: 4}
	if quotaErr.Error() != "monthly rebalance limit reached: used 4 of 4" {
		t.Fatalf("unexpected quota error: %s", quotaErr.Error())
	}
}
