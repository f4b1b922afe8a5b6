package discord

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	reMention     = regexp.MustCompile(`^<[@#][!&]?(\d+)>$`)
	reCustomEmoji = regexp.MustCompile(`^<a?:\w+:(\d+)>$`)
)

// parseIDs acepta menciones (<@id>, <@&id>, <#id>) o IDs crudos separados por espacios.
func parseIDs(raw string) []string {
	ids := []string{}
	for _, tok := range strings.Fields(raw) {
		if m := reMention.FindStringSubmatch(tok); len(m) == 2 {
			ids = append(ids, m[1])
			continue
		}
		if isDigits(tok) {
			ids = append(ids, tok)
		}
	}
	return ids
}

// parseEmojiID acepta "<:name:id>", "<a:name:id>", "name:id" o el ID solo.
func parseEmojiID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if m := reCustomEmoji.FindStringSubmatch(raw); len(m) == 2 {
		return m[1], true
	}
	if i := strings.LastIndexByte(raw, ':'); i >= 0 {
		raw = raw[i+1:]
	}
	if isDigits(raw) {
		return raw, true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// cmdOptions aplana las opciones del subcomando (o del comando si no tiene).
type cmdOptions struct {
	sub  string
	opts map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func parseOptions(ic *discordgo.InteractionCreate) cmdOptions {
	out := cmdOptions{opts: map[string]*discordgo.ApplicationCommandInteractionDataOption{}}
	if ic.Type != discordgo.InteractionApplicationCommand {
		return out
	}
	opts := ic.ApplicationCommandData().Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		out.sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, o := range opts {
		out.opts[o.Name] = o
	}
	return out
}

func (c cmdOptions) has(name string) bool { _, ok := c.opts[name]; return ok }

func (c cmdOptions) str(name string) (string, bool) {
	o, ok := c.opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return "", false
	}
	return o.StringValue(), true
}

func (c cmdOptions) boolean(name string) (bool, bool) {
	o, ok := c.opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionBoolean {
		return false, false
	}
	return o.BoolValue(), true
}

func (c cmdOptions) integer(name string) (int64, bool) {
	o, ok := c.opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionInteger {
		return 0, false
	}
	return o.IntValue(), true
}

// id devuelve el snowflake de una opción user/role/channel/mentionable.
// El valor crudo de esas opciones es el ID como string.
func (c cmdOptions) id(name string) (string, bool) {
	o, ok := c.opts[name]
	if !ok {
		return "", false
	}
	switch o.Type {
	case discordgo.ApplicationCommandOptionUser,
		discordgo.ApplicationCommandOptionRole,
		discordgo.ApplicationCommandOptionChannel,
		discordgo.ApplicationCommandOptionMentionable:
		v, ok := o.Value.(string)
		return v, ok && v != ""
	}
	return "", false
}
