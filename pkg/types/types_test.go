package types

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestConnState_String(t *testing.T) {
	tests := map[ConnState]string{
		StateUnregistered: "unregistered",
		StateRegistered:   "registered",
		StateMatched:      "matched",
		ConnState(42):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("ConnState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestNormalizeInterests(t *testing.T) {
	got := NormalizeInterests([]string{" Music", "Tech", "", "Music", "  ", "music"})
	want := []string{"Music", "Tech", "music"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeInterests() = %v, want %v", got, want)
	}

	if got := NormalizeInterests(nil); len(got) != 0 {
		t.Errorf("NormalizeInterests(nil) = %v, want empty", got)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name          string
		userID        string
		interests     []string
		policy        RegistrationPolicy
		wantReason    error
		wantUserID    string
		wantInterests []string
	}{
		{
			name:          "valid registration",
			userID:        " u1 ",
			interests:     []string{"Music", "Tech"},
			wantUserID:    "u1",
			wantInterests: []string{"Music", "Tech"},
		},
		{
			name:       "missing user id",
			userID:     "   ",
			interests:  []string{"Music"},
			wantReason: ErrMissingUserID,
		},
		{
			name:       "user id too long",
			userID:     strings.Repeat("a", MaxUserIDLength+1),
			interests:  []string{"Music"},
			wantReason: ErrUserIDTooLong,
		},
		{
			name:       "no interests",
			userID:     "u1",
			interests:  []string{},
			wantReason: ErrNoInterests,
		},
		{
			name:       "only blank interests",
			userID:     "u1",
			interests:  []string{" ", ""},
			wantReason: ErrNoInterests,
		},
		{
			name:          "default interest sentinel",
			userID:        "u1",
			interests:     nil,
			policy:        RegistrationPolicy{DefaultInterest: "Anything"},
			wantUserID:    "u1",
			wantInterests: []string{"Anything"},
		},
		{
			name:       "too many interests",
			userID:     "u1",
			interests:  []string{"a", "b", "c"},
			policy:     RegistrationPolicy{MaxInterests: 2},
			wantReason: ErrTooManyInterests,
		},
		{
			name:       "interest too long",
			userID:     "u1",
			interests:  []string{strings.Repeat("x", MaxInterestLength+1)},
			wantReason: ErrInterestTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, interests, err := ValidateRegistration(tt.userID, tt.interests, tt.policy)
			if tt.wantReason != nil {
				if !errors.Is(err, ErrInvalidRegistration) {
					t.Fatalf("expected ErrInvalidRegistration, got %v", err)
				}
				if !errors.Is(err, tt.wantReason) {
					t.Fatalf("expected reason %v, got %v", tt.wantReason, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID != tt.wantUserID {
				t.Errorf("userID = %q, want %q", userID, tt.wantUserID)
			}
			if !reflect.DeepEqual(interests, tt.wantInterests) {
				t.Errorf("interests = %v, want %v", interests, tt.wantInterests)
			}
		})
	}
}

func TestSharedInterests(t *testing.T) {
	if got := SharedInterests([]string{"Music", "Tech", "Travel"}, []string{"Travel", "Music"}); !reflect.DeepEqual(got, []string{"Music", "Travel"}) {
		t.Errorf("SharedInterests() = %v", got)
	}
	if got := SharedInterests([]string{"Music"}, []string{"Sports"}); len(got) != 0 {
		t.Errorf("disjoint sets should share nothing, got %v", got)
	}
	if got := SharedInterests(nil, []string{"Sports"}); got != nil {
		t.Errorf("nil set should share nothing, got %v", got)
	}
}

func TestMatchResult_Matched(t *testing.T) {
	if (MatchResult{}).Matched() {
		t.Error("zero MatchResult should be waiting")
	}
	if !(MatchResult{Outcome: OutcomeMatched}).Matched() {
		t.Error("OutcomeMatched should report Matched")
	}
}
