package discord

import "github.com/bwmarrin/discordgo"

var adminPerms int64 = discordgo.PermissionAdministrator

func userOpt(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Usuario", Required: required,
	}
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:                     "save",
		Description:              "Guarda configuración y estado ahora",
		DefaultMemberPermissions: &adminPerms,
	},
	{
		Name:                     "vote",
		Description:              "Votaciones de admisión (admins)",
		DefaultMemberPermissions: &adminPerms,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Ver configuración y votaciones abiertas"},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "open", Description: "Abrir una votación para un usuario",
				Options: []*discordgo.ApplicationCommandOption{userOpt(true)},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "expire", Description: "Cerrar la votación de un usuario",
				Options: []*discordgo.ApplicationCommandOption{userOpt(true)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Actualizar configuración (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Activar votaciones"},
					{
						Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Canal de votaciones",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
					{Type: discordgo.ApplicationCommandOptionString, Name: "upvote", Description: "Emoji custom a favor (<:nombre:id> o id)"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "downvote", Description: "Emoji custom en contra (<:nombre:id> o id)"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "votes_required", Description: "Votos netos necesarios", MinValue: floatPtr(1)},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "timeout", Description: "Duración de la votación en segundos", MinValue: floatPtr(0)},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Rol de miembro"},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "add_role", Description: "Agregar rol adicional"},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "remove_role", Description: "Quitar rol adicional"},
				},
			},
		},
	},
	{
		Name:                     "narrator",
		Description:              "Seguimiento de narradores (admins)",
		DefaultMemberPermissions: &adminPerms,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Ver configuración y ranking"},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "user", Description: "Ver un narrador",
				Options: []*discordgo.ApplicationCommandOption{userOpt(true)},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "time-set", Description: "Fijar segundos narrados",
				Options: []*discordgo.ApplicationCommandOption{
					userOpt(true),
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "seconds", Description: "Segundos", Required: true, MinValue: floatPtr(0)},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "time-add", Description: "Sumar (o restar) segundos narrados",
				Options: []*discordgo.ApplicationCommandOption{
					userOpt(true),
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "seconds", Description: "Segundos", Required: true},
				},
			},
			{
				Type: discordgo.ApplicationCommandOptionSubCommand, Name: "last", Description: "Fijar la última narración (epoch)",
				Options: []*discordgo.ApplicationCommandOption{
					userOpt(true),
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "epoch", Description: "Unix seconds", Required: true, MinValue: floatPtr(0)},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Borrar todos los narradores"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Actualizar configuración (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Activar seguimiento"},
					{Type: discordgo.ApplicationCommandOptionUser, Name: "recorder", Description: "Usuario grabador"},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Rol de narrador activo"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_audience", Description: "Audiencia mínima", MinValue: floatPtr(0)},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "active_time", Description: "Ventana de actividad en segundos", MinValue: floatPtr(0)},
				},
			},
		},
	},
}

func floatPtr(f float64) *float64 { return &f }
