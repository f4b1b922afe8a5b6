package discord

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/guild-keeper-bot/internal/app/service"
)

const commandCooldown = 2 * time.Second

type Router struct {
	s            *discordgo.Session
	guildID      string
	adminRoleIDs []string
	log          *slog.Logger

	polls     *service.PollService
	narrators *service.NarratorService
	admin     *service.AdminService
	recorder  *Recorder
	limiter   *userLimiter

	ready atomic.Bool
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	adminRoleIDs []string,
	polls *service.PollService,
	narrators *service.NarratorService,
	admin *service.AdminService,
	recorder *Recorder,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		s:            s,
		guildID:      guildID,
		adminRoleIDs: adminRoleIDs,
		log:          log.With("component", "router"),
		polls:        polls,
		narrators:    narrators,
		admin:        admin,
		recorder:     recorder,
		limiter:      newUserLimiter(commandCooldown),
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Ready indica si la sesión del gateway está arriba (para /readyz).
func (r *Router) Ready() bool { return r.ready.Load() }

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, _ *discordgo.Ready) {
		r.ready.Store(true)
		r.log.Info("gateway ready", "user", s.State.User.Username)
		r.narrators.Recount(context.Background())
	})
	r.s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		r.ready.Store(true)
		// los voice state updates perdidos durante el corte no se reenvían
		r.narrators.Recount(context.Background())
	})
	r.s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		r.ready.Store(false)
		r.narrators.OnGatewayLost()
		r.log.Warn("gateway disconnected")
	})

	r.s.AddHandler(r.handleSlash)

	r.s.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) {
		if ev.GuildID != r.guildID || ev.Member == nil || ev.User == nil {
			return
		}
		defer r.recoverEvent("member_add")
		r.polls.CheckAndCreate(context.Background(), toMember(ev.Member))
	})

	r.s.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberRemove) {
		if ev.GuildID != r.guildID || ev.Member == nil || ev.User == nil {
			return
		}
		defer r.recoverEvent("member_remove")
		r.polls.CancelOnLeave(context.Background(), ev.User.ID)
	})

	r.s.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberUpdate) {
		if ev.GuildID != r.guildID || ev.Member == nil || ev.User == nil {
			return
		}
		defer r.recoverEvent("member_update")
		var before *service.Member
		if ev.BeforeUpdate != nil {
			m := toMember(ev.BeforeUpdate)
			before = &m
		}
		r.polls.OnMemberUpdate(context.Background(), before, toMember(ev.Member))
	})

	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageReactionAdd) {
		if ev.MessageReaction == nil || r.ownReaction(s, ev.UserID) {
			return
		}
		r.rescore(ev.GuildID, ev.MessageID)
	})
	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageReactionRemove) {
		if ev.MessageReaction == nil || r.ownReaction(s, ev.UserID) {
			return
		}
		r.rescore(ev.GuildID, ev.MessageID)
	})
	r.s.AddHandler(func(_ *discordgo.Session, ev *discordgo.MessageReactionRemoveAll) {
		if ev.MessageReaction == nil {
			return
		}
		r.rescore(ev.GuildID, ev.MessageID)
	})

	r.s.AddHandler(func(_ *discordgo.Session, ev *discordgo.MessageDelete) {
		if ev.Message == nil || ev.GuildID != r.guildID {
			return
		}
		defer r.recoverEvent("message_delete")
		r.polls.OnMessageDeleted(context.Background(), ev.ChannelID, ev.ID)
	})

	r.s.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		defer r.recoverEvent("voice_state")
		r.onVoiceStateUpdate(s, vs)
	})
}

func (r *Router) rescore(guildID, messageID string) {
	if guildID != r.guildID {
		return
	}
	defer r.recoverEvent("reaction")
	if _, _, err := r.polls.Score(context.Background(), messageID); err != nil {
		r.log.Warn("score poll", "message_id", messageID, "err", err)
	}
}

// las reacciones iniciales del bot no cambian el puntaje
func (r *Router) ownReaction(s *discordgo.Session, userID string) bool {
	return s.State.User != nil && userID == s.State.User.ID
}

func (r *Router) recoverEvent(event string) {
	if rec := recover(); rec != nil {
		r.log.Error("panic in event handler", "event", event, "panic", rec)
	}
}
