package domain

import (
	"errors"
	"fmt"
	"slices"
)

const (
	DefaultVotesRequired = 5
	// DefaultPollTimeout = 2 semanas. 1184400 aparece en snapshots viejos y se respeta tal cual.
	DefaultPollTimeout       int64 = 1209600
	LegacyPollTimeout        int64 = 1184400
	DefaultMinAudience             = 5
	DefaultNarratorActiveFor int64 = 604800
)

// MemberVote configura el módulo de votación de admisión.
type MemberVote struct {
	Enabled         bool
	ChannelID       string
	UpvoteEmojiID   string
	DownvoteEmojiID string
	VotesRequired   int
	TimeoutSeconds  int64
	MemberRoleID    string
	AdditionalRoles []string
}

// Narrator configura el seguimiento de narradores en voz.
type Narrator struct {
	Enabled           bool
	RecorderID        string
	RoleID            string
	MinAudience       int
	ActiveTimeSeconds int64
}

// Settings es la configuración administrable del bot (documento bot_settings).
type Settings struct {
	MemberVote MemberVote
	Narrator   Narrator
}

func DefaultSettings() Settings {
	return Settings{
		MemberVote: MemberVote{
			VotesRequired:  DefaultVotesRequired,
			TimeoutSeconds: DefaultPollTimeout,
		},
		Narrator: Narrator{
			MinAudience:       DefaultMinAudience,
			ActiveTimeSeconds: DefaultNarratorActiveFor,
		},
	}
}

// Clone devuelve una copia profunda (los slices no se comparten).
func (s Settings) Clone() Settings {
	out := s
	out.MemberVote.AdditionalRoles = slices.Clone(s.MemberVote.AdditionalRoles)
	return out
}

// Validate aplica los invariantes de rango. Devuelve todos los fallos juntos.
func (s Settings) Validate() error {
	var errs []error
	if s.MemberVote.VotesRequired < 1 {
		errs = append(errs, fmt.Errorf("member_vote.votes_required %d must be >= 1: %w", s.MemberVote.VotesRequired, ErrInvalidInput))
	}
	if s.MemberVote.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("member_vote.timeout %d must be >= 0: %w", s.MemberVote.TimeoutSeconds, ErrInvalidInput))
	}
	if s.Narrator.MinAudience < 0 {
		errs = append(errs, fmt.Errorf("narrator.min_audience %d must be >= 0: %w", s.Narrator.MinAudience, ErrInvalidInput))
	}
	if s.Narrator.ActiveTimeSeconds < 0 {
		errs = append(errs, fmt.Errorf("narrator.active_time %d must be >= 0: %w", s.Narrator.ActiveTimeSeconds, ErrInvalidInput))
	}
	return errors.Join(errs...)
}

// GrantedRoles: rol de miembro + adicionales, sin duplicados ni vacíos.
func (m MemberVote) GrantedRoles() []string {
	out := make([]string, 0, len(m.AdditionalRoles)+1)
	if m.MemberRoleID != "" {
		out = append(out, m.MemberRoleID)
	}
	for _, r := range m.AdditionalRoles {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// AddAdditionalRole devuelve ErrConflict si el rol ya estaba.
func (m *MemberVote) AddAdditionalRole(roleID string) error {
	if roleID == "" {
		return fmt.Errorf("empty role id: %w", ErrInvalidInput)
	}
	if slices.Contains(m.AdditionalRoles, roleID) {
		return fmt.Errorf("role %s already additional: %w", roleID, ErrConflict)
	}
	m.AdditionalRoles = append(m.AdditionalRoles, roleID)
	return nil
}

// RemoveAdditionalRole devuelve ErrNotFound si el rol no estaba.
func (m *MemberVote) RemoveAdditionalRole(roleID string) error {
	i := slices.Index(m.AdditionalRoles, roleID)
	if i < 0 {
		return fmt.Errorf("role %s is not additional: %w", roleID, ErrNotFound)
	}
	m.AdditionalRoles = slices.Delete(m.AdditionalRoles, i, i+1)
	return nil
}
