package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// isAdmin: owner del guild, bit Administrator o alguno de los roles configurados.
func isAdmin(userID, ownerID string, perms int64, memberRoles, adminRoleIDs []string) bool {
	if userID != "" && userID == ownerID {
		return true
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, want := range adminRoleIDs {
		if slices.Contains(memberRoles, want) {
			return true
		}
	}
	return false
}

func (r *Router) requireAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if ic.Member == nil || ic.Member.User == nil {
		ReplyEphemeral(s, ic, "🔒 Este comando solo funciona dentro del servidor.")
		return false
	}
	ownerID := ""
	if g, _ := s.State.Guild(ic.GuildID); g != nil {
		ownerID = g.OwnerID
	}
	// ic.Member.Permissions ya viene calculado por Discord para el canal
	if isAdmin(ic.Member.User.ID, ownerID, ic.Member.Permissions, ic.Member.Roles, r.adminRoleIDs) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}
