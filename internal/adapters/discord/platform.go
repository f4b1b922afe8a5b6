package discord

import (
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/guild-keeper-bot/internal/app/service"
	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// límite de la API para GET /reactions/{emoji}
const reactionPage = 100

// Platform implementa service.Platform sobre una sesión de discordgo.
// Opera siempre sobre un único guild.
type Platform struct {
	s       *discordgo.Session
	guildID string
}

func NewPlatform(s *discordgo.Session, guildID string) *Platform {
	return &Platform{s: s, guildID: guildID}
}

var _ service.Platform = (*Platform)(nil)

func (p *Platform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := p.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		// la mención se muestra pero no notifica
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return msg.ID, nil
}

func (p *Platform) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := p.s.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapErr(p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (p *Platform) AddReaction(ctx context.Context, channelID, messageID, emojiID string) error {
	if emojiID == "" {
		return fmt.Errorf("reaction emoji not set: %w", domain.ErrNotFound)
	}
	return mapErr(p.s.MessageReactionAdd(channelID, messageID, customEmojiKey(emojiID), discordgo.WithContext(ctx)))
}

func (p *Platform) ListReactions(ctx context.Context, channelID, messageID string) ([]service.Reaction, error) {
	msg, err := p.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]service.Reaction, 0, len(msg.Reactions))
	for _, mr := range msg.Reactions {
		if mr.Emoji == nil {
			continue
		}
		r := service.Reaction{EmojiID: mr.Emoji.ID, Key: mr.Emoji.APIName()}
		after := ""
		for {
			users, err := p.s.MessageReactions(channelID, messageID, r.Key, reactionPage, "", after, discordgo.WithContext(ctx))
			if err != nil {
				return nil, mapErr(err)
			}
			for _, u := range users {
				r.Users = append(r.Users, service.Voter{ID: u.ID, Bot: u.Bot})
			}
			if len(users) < reactionPage {
				break
			}
			after = users[len(users)-1].ID
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Platform) RemoveReaction(ctx context.Context, channelID, messageID string, r service.Reaction, userID string) error {
	return mapErr(p.s.MessageReactionRemove(channelID, messageID, r.Key, userID, discordgo.WithContext(ctx)))
}

// AddRoles hace un único PATCH con la unión de roles actuales y nuevos.
func (p *Platform) AddRoles(ctx context.Context, userID string, roleIDs []string) error {
	m, err := p.member(ctx, userID)
	if err != nil {
		return err
	}
	roles := slices.Clone(m.Roles)
	for _, r := range roleIDs {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) == len(m.Roles) {
		return nil
	}
	_, err = p.s.GuildMemberEdit(p.guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (p *Platform) AddRole(ctx context.Context, userID, roleID string) error {
	return mapErr(p.s.GuildMemberRoleAdd(p.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (p *Platform) RemoveRole(ctx context.Context, userID, roleID string) error {
	return mapErr(p.s.GuildMemberRoleRemove(p.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (p *Platform) Member(ctx context.Context, userID string) (service.Member, error) {
	m, err := p.member(ctx, userID)
	if err != nil {
		return service.Member{}, err
	}
	return toMember(m), nil
}

// member lee del state cache y cae a la API si no está.
func (p *Platform) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	if m, err := p.s.State.Member(p.guildID, userID); err == nil && m != nil {
		return m, nil
	}
	m, err := p.s.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	_ = p.s.State.MemberAdd(m)
	return m, nil
}

func toMember(m *discordgo.Member) service.Member {
	out := service.Member{Roles: slices.Clone(m.Roles), JoinedAt: m.JoinedAt}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Bot = m.User.Bot
	}
	return out
}

// customEmojiKey arma el identificador "name:id" que pide la API; el nombre
// no se valida para emojis custom, solo el ID.
func customEmojiKey(id string) string { return "vote:" + id }
