package service

import (
	"context"
	"slices"
	"time"
)

// Lo implementa internal/adapters/discord.Platform.
// Errores de "no existe" (mensaje, miembro, canal) envuelven domain.ErrNotFound.
type Messenger interface {
	SendMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type Reactions interface {
	// AddReaction agrega la reacción del bot con un emoji custom (por ID).
	AddReaction(ctx context.Context, channelID, messageID, emojiID string) error
	// ListReactions devuelve cada reacción con todos sus usuarios.
	ListReactions(ctx context.Context, channelID, messageID string) ([]Reaction, error)
	RemoveReaction(ctx context.Context, channelID, messageID string, r Reaction, userID string) error
}

type Roles interface {
	// AddRoles otorga varios roles en una sola llamada.
	AddRoles(ctx context.Context, userID string, roleIDs []string) error
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

type Members interface {
	Member(ctx context.Context, userID string) (Member, error)
}

// Platform reúne todo lo que PollService necesita de la plataforma.
type Platform interface {
	Messenger
	Reactions
	Roles
	Members
}

// Lo implementa internal/adapters/discord.Recorder.
type VoiceConnector interface {
	JoinVoice(ctx context.Context, channelID string) error
	LeaveVoice(ctx context.Context) error
	// ChannelHumans cuenta los usuarios no-bot presentes en el canal de voz.
	ChannelHumans(ctx context.Context, channelID string) (int, error)
}

// Reaction: EmojiID vacío para emojis unicode. Key identifica la reacción ante la API.
type Reaction struct {
	EmojiID string
	Key     string
	Users   []Voter
}

type Voter struct {
	ID  string
	Bot bool
}

type Member struct {
	UserID   string
	Bot      bool
	Roles    []string
	JoinedAt time.Time
}

func (m Member) HasRole(roleID string) bool {
	return roleID != "" && slices.Contains(m.Roles, roleID)
}
