package domain

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Settings) {}},
		{name: "zero votes required", mutate: func(s *Settings) { s.MemberVote.VotesRequired = 0 }, wantErr: true},
		{name: "negative timeout", mutate: func(s *Settings) { s.MemberVote.TimeoutSeconds = -1 }, wantErr: true},
		{name: "negative audience", mutate: func(s *Settings) { s.Narrator.MinAudience = -1 }, wantErr: true},
		{name: "negative active time", mutate: func(s *Settings) { s.Narrator.ActiveTimeSeconds = -10 }, wantErr: true},
		{name: "zero audience allowed", mutate: func(s *Settings) { s.Narrator.MinAudience = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSettings_CloneDoesNotShareRoles(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.MemberVote.AdditionalRoles = []string{"a"}
	c := s.Clone()
	c.MemberVote.AdditionalRoles[0] = "b"
	if s.MemberVote.AdditionalRoles[0] != "a" {
		t.Errorf("clone shares backing array")
	}
}

func TestMemberVote_GrantedRoles(t *testing.T) {
	t.Parallel()

	m := MemberVote{MemberRoleID: "m", AdditionalRoles: []string{"x", "m", "", "y", "x"}}
	if got, want := m.GrantedRoles(), []string{"m", "x", "y"}; !slices.Equal(got, want) {
		t.Errorf("GrantedRoles() = %v, want %v", got, want)
	}
}

func TestMemberVote_AdditionalRoles(t *testing.T) {
	t.Parallel()

	var m MemberVote
	if err := m.AddAdditionalRole("r1"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddAdditionalRole("r1"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate add err = %v, want ErrConflict", err)
	}
	if err := m.RemoveAdditionalRole("r2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing remove err = %v, want ErrNotFound", err)
	}
	if err := m.RemoveAdditionalRole("r1"); err != nil {
		t.Fatal(err)
	}
	if len(m.AdditionalRoles) != 0 {
		t.Errorf("roles = %v, want empty", m.AdditionalRoles)
	}
}

func TestMembershipPoll_Expired(t *testing.T) {
	t.Parallel()

	p := MembershipPoll{MessageID: "m", UserID: "u", CreatedAt: 1000}
	if p.Expired(1000+3600-1, 3600) {
		t.Errorf("expired one second before timeout")
	}
	if !p.Expired(1000+3600, 3600) {
		t.Errorf("not expired at timeout")
	}
	if got := p.Age(900); got != 0 {
		t.Errorf("Age before creation = %d, want 0", got)
	}
}

func TestRiskScore(t *testing.T) {
	t.Parallel()

	// snowflake de una cuenta creada en 1600000000 (epoch s)
	const userID = "754679440998400000"
	created := time.Unix(1600000000, 0)

	if got, ok := SnowflakeTime(userID); !ok || !got.Equal(created) {
		t.Fatalf("SnowflakeTime = %v, %v", got, ok)
	}

	tests := []struct {
		name   string
		joined time.Time
		want   int
	}{
		{name: "joined instantly", joined: created, want: 99},
		{name: "joined after one day", joined: created.Add(86399 * time.Second), want: 50},
		{name: "old account", joined: created.Add(30 * 24 * time.Hour), want: 0},
		{name: "unknown join", joined: time.Time{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RiskScore(userID, tt.joined); got != tt.want {
				t.Errorf("RiskScore = %d, want %d", got, tt.want)
			}
		})
	}

	if got := RiskScore("not-a-number", created); got != 0 {
		t.Errorf("invalid id score = %d", got)
	}
}
