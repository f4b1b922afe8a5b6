package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

const commandTimeout = 12 * time.Second

func (r *Router) handleSlash(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand || ic.GuildID != r.guildID {
		return
	}
	name := commandName(ic)
	log := r.log.With("command", name)
	if ic.Member != nil && ic.Member.User != nil {
		log = log.With("user_id", ic.Member.User.ID)
	}
	defer step(log, "/"+name)()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in slash command", "panic", rec)
			ReplyEphemeral(s, ic, "⚠️ Ocurrió un error inesperado.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	if !r.requireAdmin(s, ic) {
		return
	}
	if !r.limiter.Allow(ic.Member.User.ID) {
		ReplyEphemeral(s, ic, "⏳ Espera un momento antes de repetir el comando.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	opts := parseOptions(ic)
	var (
		msg string
		err error
	)
	switch name {
	case "save":
		msg, err = r.admin.Save(ctx)
	case "vote":
		msg, err = r.dispatchVote(ctx, opts)
	case "narrator":
		msg, err = r.dispatchNarrator(ctx, opts)
	default:
		msg = "❓ Comando desconocido."
	}
	if err != nil {
		log.Error("slash command failed", "err", err)
		msg = "⚠️ No se pudo completar: " + err.Error()
	}
	ReplyEphemeral(s, ic, msg)
}

func (r *Router) dispatchVote(ctx context.Context, opts cmdOptions) (string, error) {
	switch opts.sub {
	case "status":
		return r.admin.VoteStatus(), nil
	case "open":
		uid, _ := opts.id("user")
		return r.admin.OpenPoll(ctx, uid)
	case "expire":
		uid, _ := opts.id("user")
		return r.admin.ExpirePoll(ctx, uid)
	case "set":
		if bad := badEmojiOption(opts, "upvote", "downvote"); bad != "" {
			return "❌ Emoji inválido en `" + bad + "`: usa un emoji custom o su ID.", nil
		}
		return r.admin.UpdateVote(func(mv *domain.MemberVote) error { return applyVoteSet(mv, opts) })
	}
	return "Usa `/vote status`, `/vote open`, `/vote expire` o `/vote set`.", nil
}

func (r *Router) dispatchNarrator(ctx context.Context, opts cmdOptions) (string, error) {
	uid, _ := opts.id("user")
	switch opts.sub {
	case "status":
		return r.admin.NarratorStatus(), nil
	case "user":
		return r.admin.NarratorUser(uid), nil
	case "time-set":
		secs, _ := opts.integer("seconds")
		return r.admin.SetNarratorTime(uid, secs)
	case "time-add":
		secs, _ := opts.integer("seconds")
		return r.admin.AddNarratorTime(uid, secs)
	case "last":
		at, _ := opts.integer("epoch")
		return r.admin.SetLastNarration(ctx, uid, at)
	case "clear":
		return r.admin.ClearNarrators(ctx)
	case "set":
		return r.admin.UpdateNarrator(func(n *domain.Narrator) error { return applyNarratorSet(n, opts) })
	}
	return "Usa `/narrator status|user|time-set|time-add|last|clear|set`.", nil
}

func badEmojiOption(opts cmdOptions, names ...string) string {
	for _, n := range names {
		if raw, ok := opts.str(n); ok {
			if _, ok := parseEmojiID(raw); !ok {
				return n
			}
		}
	}
	return ""
}

// applyVoteSet copia sólo los campos presentes; la validación de rangos queda en el store.
func applyVoteSet(mv *domain.MemberVote, opts cmdOptions) error {
	if v, ok := opts.boolean("enabled"); ok {
		mv.Enabled = v
	}
	if v, ok := opts.id("channel"); ok {
		mv.ChannelID = v
	}
	if raw, ok := opts.str("upvote"); ok {
		mv.UpvoteEmojiID, _ = parseEmojiID(raw)
	}
	if raw, ok := opts.str("downvote"); ok {
		mv.DownvoteEmojiID, _ = parseEmojiID(raw)
	}
	if v, ok := opts.integer("votes_required"); ok {
		mv.VotesRequired = int(v)
	}
	if v, ok := opts.integer("timeout"); ok {
		mv.TimeoutSeconds = v
	}
	if v, ok := opts.id("role"); ok {
		mv.MemberRoleID = v
	}
	if v, ok := opts.id("add_role"); ok {
		if err := mv.AddAdditionalRole(v); err != nil {
			return err
		}
	}
	if v, ok := opts.id("remove_role"); ok {
		if err := mv.RemoveAdditionalRole(v); err != nil {
			return err
		}
	}
	return nil
}

func applyNarratorSet(n *domain.Narrator, opts cmdOptions) error {
	if v, ok := opts.boolean("enabled"); ok {
		n.Enabled = v
	}
	if v, ok := opts.id("recorder"); ok {
		n.RecorderID = v
	}
	if v, ok := opts.id("role"); ok {
		n.RoleID = v
	}
	if v, ok := opts.integer("min_audience"); ok {
		n.MinAudience = int(v)
	}
	if v, ok := opts.integer("active_time"); ok {
		n.ActiveTimeSeconds = v
	}
	return nil
}
