package discord

import (
	"errors"
	"slices"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

func TestApplyVoteSet(t *testing.T) {
	mv := domain.DefaultSettings().MemberVote
	mv.AdditionalRoles = []string{"400"}
	o := parseOptions(slash("vote", sub("set",
		opt("enabled", discordgo.ApplicationCommandOptionBoolean, true),
		opt("channel", discordgo.ApplicationCommandOptionChannel, "100"),
		opt("upvote", discordgo.ApplicationCommandOptionString, "<:up:201>"),
		opt("downvote", discordgo.ApplicationCommandOptionString, "202"),
		opt("votes_required", discordgo.ApplicationCommandOptionInteger, float64(3)),
		opt("role", discordgo.ApplicationCommandOptionRole, "300"),
		opt("add_role", discordgo.ApplicationCommandOptionRole, "301"),
		opt("remove_role", discordgo.ApplicationCommandOptionRole, "400"),
	)))
	if err := applyVoteSet(&mv, o); err != nil {
		t.Fatalf("applyVoteSet: %v", err)
	}
	if !mv.Enabled || mv.ChannelID != "100" || mv.UpvoteEmojiID != "201" || mv.DownvoteEmojiID != "202" {
		t.Errorf("unexpected vote config %+v", mv)
	}
	if mv.VotesRequired != 3 || mv.MemberRoleID != "300" {
		t.Errorf("unexpected vote config %+v", mv)
	}
	if mv.TimeoutSeconds != domain.DefaultPollTimeout {
		t.Errorf("timeout changed to %d without option", mv.TimeoutSeconds)
	}
	if !slices.Equal(mv.AdditionalRoles, []string{"301"}) {
		t.Errorf("additional roles = %v", mv.AdditionalRoles)
	}
}

func TestApplyVoteSetRoleErrors(t *testing.T) {
	mv := domain.DefaultSettings().MemberVote
	o := parseOptions(slash("vote", sub("set", opt("remove_role", discordgo.ApplicationCommandOptionRole, "999"))))
	if err := applyVoteSet(&mv, o); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove missing role err = %v, want ErrNotFound", err)
	}

	mv.AdditionalRoles = []string{"301"}
	o = parseOptions(slash("vote", sub("set", opt("add_role", discordgo.ApplicationCommandOptionRole, "301"))))
	if err := applyVoteSet(&mv, o); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("add duplicate role err = %v, want ErrConflict", err)
	}
}

func TestApplyNarratorSet(t *testing.T) {
	n := domain.DefaultSettings().Narrator
	o := parseOptions(slash("narrator", sub("set",
		opt("enabled", discordgo.ApplicationCommandOptionBoolean, true),
		opt("recorder", discordgo.ApplicationCommandOptionUser, "900"),
		opt("min_audience", discordgo.ApplicationCommandOptionInteger, float64(2)),
	)))
	if err := applyNarratorSet(&n, o); err != nil {
		t.Fatalf("applyNarratorSet: %v", err)
	}
	want := domain.Narrator{Enabled: true, RecorderID: "900", MinAudience: 2, ActiveTimeSeconds: domain.DefaultNarratorActiveFor}
	if n != want {
		t.Fatalf("narrator = %+v, want %+v", n, want)
	}
}

func TestBadEmojiOption(t *testing.T) {
	o := parseOptions(slash("vote", sub("set",
		opt("upvote", discordgo.ApplicationCommandOptionString, "<:up:201>"),
		opt("downvote", discordgo.ApplicationCommandOptionString, "👎"),
	)))
	if got := badEmojiOption(o, "upvote", "downvote"); got != "downvote" {
		t.Fatalf("badEmojiOption = %q, want downvote", got)
	}
}
