package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// Claves del documento de settings.
const (
	keyMemberVote = "member_vote"
	keyNarrator   = "narrator"
)

// snowflake es un ID de plataforma. Se escribe como número JSON y se lee
// como número o string. 0 / null significan "sin configurar".
type snowflake string

func (s snowflake) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("0"), nil
	}
	if _, err := strconv.ParseUint(string(s), 10, 64); err != nil {
		return nil, fmt.Errorf("snowflake %q: %w", string(s), domain.ErrInvalidInput)
	}
	return []byte(s), nil
}

func (s *snowflake) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		b = []byte(str)
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("snowflake %s: %w", b, err)
	}
	if v == 0 {
		*s = ""
		return nil
	}
	*s = snowflake(strconv.FormatUint(v, 10))
	return nil
}

// Punteros: campo ausente al leer => default. Al escribir se emiten todos.
type memberVoteDoc struct {
	Enabled          *bool       `json:"enabled"`
	Channel          *snowflake  `json:"channel"`
	ReactionUpvote   *snowflake  `json:"reaction_upvote"`
	ReactionDownvote *snowflake  `json:"reaction_downvote"`
	VotesRequired    *int        `json:"votes_required"`
	Timeout          *int64      `json:"timeout"`
	Role             *snowflake  `json:"role"`
	AdditionalRoles  []snowflake `json:"additional_roles"`
}

type narratorSettingsDoc struct {
	Enabled     *bool      `json:"enabled"`
	Recorder    *snowflake `json:"recorder"`
	Role        *snowflake `json:"role"`
	MinAudience *int       `json:"min_audience"`
	ActiveTime  *int64     `json:"active_time"`
}

type pollDoc struct {
	MessageID        snowflake `json:"message_id"`
	UserID           snowflake `json:"user_id"`
	TimestampCreated int64     `json:"timestamp_created"`
}

type narratorDoc struct {
	ID            snowflake `json:"id"`
	Time          int64     `json:"time"`
	LastNarration int64     `json:"last_narration"`
}

type stateDoc struct {
	MemberPolls []pollDoc     `json:"member_polls"`
	Narrators   []narratorDoc `json:"narrators"`
}

func ptr[T any](v T) *T { return &v }

func sf(p *snowflake) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

// EncodeSettings serializa la configuración junto con las claves ajenas preservadas.
func EncodeSettings(s domain.Settings, extra map[string]json.RawMessage) ([]byte, error) {
	doc := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		doc[k] = v
	}
	roles := make([]snowflake, 0, len(s.MemberVote.AdditionalRoles))
	for _, r := range s.MemberVote.AdditionalRoles {
		roles = append(roles, snowflake(r))
	}
	doc[keyMemberVote] = memberVoteDoc{
		Enabled:          ptr(s.MemberVote.Enabled),
		Channel:          ptr(snowflake(s.MemberVote.ChannelID)),
		ReactionUpvote:   ptr(snowflake(s.MemberVote.UpvoteEmojiID)),
		ReactionDownvote: ptr(snowflake(s.MemberVote.DownvoteEmojiID)),
		VotesRequired:    ptr(s.MemberVote.VotesRequired),
		Timeout:          ptr(s.MemberVote.TimeoutSeconds),
		Role:             ptr(snowflake(s.MemberVote.MemberRoleID)),
		AdditionalRoles:  roles,
	}
	doc[keyNarrator] = narratorSettingsDoc{
		Enabled:     ptr(s.Narrator.Enabled),
		Recorder:    ptr(snowflake(s.Narrator.RecorderID)),
		Role:        ptr(snowflake(s.Narrator.RoleID)),
		MinAudience: ptr(s.Narrator.MinAudience),
		ActiveTime:  ptr(s.Narrator.ActiveTimeSeconds),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeSettings parte de los defaults y pisa solo los campos presentes.
// El resultado se valida: un valor fuera de rango es documento inválido.
func DecodeSettings(data []byte) (domain.Settings, map[string]json.RawMessage, error) {
	s := domain.DefaultSettings()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, nil, fmt.Errorf("decode settings: %w", err)
	}
	if raw == nil {
		return s, nil, fmt.Errorf("decode settings: document is not an object")
	}

	if b, ok := raw[keyMemberVote]; ok {
		var mv memberVoteDoc
		if err := json.Unmarshal(b, &mv); err != nil {
			return s, nil, fmt.Errorf("decode settings.%s: %w", keyMemberVote, err)
		}
		if mv.Enabled != nil {
			s.MemberVote.Enabled = *mv.Enabled
		}
		if mv.Channel != nil {
			s.MemberVote.ChannelID = sf(mv.Channel)
		}
		if mv.ReactionUpvote != nil {
			s.MemberVote.UpvoteEmojiID = sf(mv.ReactionUpvote)
		}
		if mv.ReactionDownvote != nil {
			s.MemberVote.DownvoteEmojiID = sf(mv.ReactionDownvote)
		}
		if mv.VotesRequired != nil {
			s.MemberVote.VotesRequired = *mv.VotesRequired
		}
		if mv.Timeout != nil {
			s.MemberVote.TimeoutSeconds = *mv.Timeout
		}
		if mv.Role != nil {
			s.MemberVote.MemberRoleID = sf(mv.Role)
		}
		for _, r := range mv.AdditionalRoles {
			if r == "" {
				continue
			}
			// duplicados en disco: se colapsan
			_ = s.MemberVote.AddAdditionalRole(string(r))
		}
	}

	if b, ok := raw[keyNarrator]; ok {
		var nd narratorSettingsDoc
		if err := json.Unmarshal(b, &nd); err != nil {
			return s, nil, fmt.Errorf("decode settings.%s: %w", keyNarrator, err)
		}
		if nd.Enabled != nil {
			s.Narrator.Enabled = *nd.Enabled
		}
		if nd.Recorder != nil {
			s.Narrator.RecorderID = sf(nd.Recorder)
		}
		if nd.Role != nil {
			s.Narrator.RoleID = sf(nd.Role)
		}
		if nd.MinAudience != nil {
			s.Narrator.MinAudience = *nd.MinAudience
		}
		if nd.ActiveTime != nil {
			s.Narrator.ActiveTimeSeconds = *nd.ActiveTime
		}
	}

	if err := s.Validate(); err != nil {
		return s, nil, fmt.Errorf("decode settings: %w", err)
	}

	delete(raw, keyMemberVote)
	delete(raw, keyNarrator)
	return s, raw, nil
}

// EncodeState serializa encuestas y narradores en orden estable.
func EncodeState(polls []domain.MembershipPoll, narrators []domain.NarratorRecord) ([]byte, error) {
	doc := stateDoc{
		MemberPolls: make([]pollDoc, 0, len(polls)),
		Narrators:   make([]narratorDoc, 0, len(narrators)),
	}
	for _, p := range polls {
		doc.MemberPolls = append(doc.MemberPolls, pollDoc{
			MessageID:        snowflake(p.MessageID),
			UserID:           snowflake(p.UserID),
			TimestampCreated: p.CreatedAt,
		})
	}
	for _, n := range narrators {
		doc.Narrators = append(doc.Narrators, narratorDoc{
			ID:            snowflake(n.UserID),
			Time:          n.Time,
			LastNarration: n.LastNarration,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeState lee el documento de estado. Arrays ausentes => vacíos.
func DecodeState(data []byte) ([]domain.MembershipPoll, []domain.NarratorRecord, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	polls := make([]domain.MembershipPoll, 0, len(doc.MemberPolls))
	for i, p := range doc.MemberPolls {
		if p.MessageID == "" || p.UserID == "" {
			return nil, nil, fmt.Errorf("decode state: member_polls[%d] missing ids: %w", i, domain.ErrInvalidInput)
		}
		polls = append(polls, domain.MembershipPoll{
			MessageID: string(p.MessageID),
			UserID:    string(p.UserID),
			CreatedAt: p.TimestampCreated,
		})
	}
	narrators := make([]domain.NarratorRecord, 0, len(doc.Narrators))
	for i, n := range doc.Narrators {
		if n.ID == "" {
			return nil, nil, fmt.Errorf("decode state: narrators[%d] missing id: %w", i, domain.ErrInvalidInput)
		}
		narrators = append(narrators, domain.NarratorRecord{
			UserID:        string(n.ID),
			Time:          n.Time,
			LastNarration: n.LastNarration,
		})
	}
	return polls, narrators, nil
}
