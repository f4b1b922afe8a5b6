package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

type snapshotView struct {
	Settings  settingsView   `json:"settings" yaml:"settings"`
	Polls     []pollView     `json:"member_polls" yaml:"member_polls"`
	Narrators []narratorView `json:"narrators" yaml:"narrators"`
	Missing   []string       `json:"missing,omitempty" yaml:"missing,omitempty"`
}

type settingsView struct {
	MemberVote struct {
		Enabled         bool     `json:"enabled" yaml:"enabled"`
		Channel         string   `json:"channel" yaml:"channel"`
		Upvote          string   `json:"reaction_upvote" yaml:"reaction_upvote"`
		Downvote        string   `json:"reaction_downvote" yaml:"reaction_downvote"`
		VotesRequired   int      `json:"votes_required" yaml:"votes_required"`
		Timeout         int64    `json:"timeout" yaml:"timeout"`
		Role            string   `json:"role" yaml:"role"`
		AdditionalRoles []string `json:"additional_roles" yaml:"additional_roles"`
	} `json:"member_vote" yaml:"member_vote"`
	Narrator struct {
		Enabled     bool   `json:"enabled" yaml:"enabled"`
		Recorder    string `json:"recorder" yaml:"recorder"`
		Role        string `json:"role" yaml:"role"`
		MinAudience int    `json:"min_audience" yaml:"min_audience"`
		ActiveTime  int64  `json:"active_time" yaml:"active_time"`
	} `json:"narrator" yaml:"narrator"`
	Extra []string `json:"preserved_keys,omitempty" yaml:"preserved_keys,omitempty"`
}

type pollView struct {
	MessageID string `json:"message_id" yaml:"message_id"`
	UserID    string `json:"user_id" yaml:"user_id"`
	Created   int64  `json:"timestamp_created" yaml:"timestamp_created"`
}

type narratorView struct {
	ID            string `json:"id" yaml:"id"`
	Time          int64  `json:"time" yaml:"time"`
	LastNarration int64  `json:"last_narration" yaml:"last_narration"`
}

func newSettingsView(s domain.Settings, extra []string) settingsView {
	var v settingsView
	mv := s.MemberVote
	v.MemberVote.Enabled = mv.Enabled
	v.MemberVote.Channel = mv.ChannelID
	v.MemberVote.Upvote = mv.UpvoteEmojiID
	v.MemberVote.Downvote = mv.DownvoteEmojiID
	v.MemberVote.VotesRequired = mv.VotesRequired
	v.MemberVote.Timeout = mv.TimeoutSeconds
	v.MemberVote.Role = mv.MemberRoleID
	v.MemberVote.AdditionalRoles = append([]string{}, mv.AdditionalRoles...)
	n := s.Narrator
	v.Narrator.Enabled = n.Enabled
	v.Narrator.Recorder = n.RecorderID
	v.Narrator.Role = n.RoleID
	v.Narrator.MinAudience = n.MinAudience
	v.Narrator.ActiveTime = n.ActiveTimeSeconds
	v.Extra = extra
	return v
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the decoded settings and state documents",
		Long: `Decode both snapshot documents and print them.

Missing documents are shown with their defaults and listed under "missing".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if format != "json" && format != "yaml" {
				return fmt.Errorf("invalid --format %q (want json or yaml)", format)
			}
			kind, _ := cmd.Flags().GetString("backend")

			b, closeFn, err := sourceFromFlags(cmd, kind).open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			view := snapshotView{Polls: []pollView{}, Narrators: []narratorView{}}

			settings, extra := domain.DefaultSettings(), []string(nil)
			data, err := readDoc(cmd.Context(), b, storage.DocSettings)
			if err != nil {
				return err
			}
			if data == nil {
				view.Missing = append(view.Missing, storage.DocSettings)
			} else {
				s, ex, err := storage.DecodeSettings(data)
				if err != nil {
					return fmt.Errorf("%s: %w", storage.DocSettings, err)
				}
				settings = s
				for k := range ex {
					extra = append(extra, k)
				}
			}
			view.Settings = newSettingsView(settings, sortedCopy(extra))

			data, err = readDoc(cmd.Context(), b, storage.DocState)
			if err != nil {
				return err
			}
			if data == nil {
				view.Missing = append(view.Missing, storage.DocState)
			} else {
				polls, narrators, err := storage.DecodeState(data)
				if err != nil {
					return fmt.Errorf("%s: %w", storage.DocState, err)
				}
				for _, p := range polls {
					view.Polls = append(view.Polls, pollView{MessageID: p.MessageID, UserID: p.UserID, Created: p.CreatedAt})
				}
				for _, n := range narrators {
					view.Narrators = append(view.Narrators, narratorView{ID: n.UserID, Time: n.Time, LastNarration: n.LastNarration})
				}
			}

			out := cmd.OutOrStdout()
			if format == "yaml" {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(view); err != nil {
					return err
				}
				return enc.Close()
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().String("backend", "file", "backend to read: file or postgres")
	cmd.Flags().String("format", "json", "output format: json or yaml")
	return cmd
}
