package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/guild-keeper-bot/internal/app/service"
)

// SpeakingFunc recibe los eventos start/stop de cada usuario en el canal conectado.
type SpeakingFunc func(ctx context.Context, userID string, bot, speaking bool)

// Recorder mantiene la única conexión de voz del bot (la del grabador).
type Recorder struct {
	s       *discordgo.Session
	guildID string
	log     *slog.Logger

	mu         sync.Mutex
	vc         *discordgo.VoiceConnection
	onSpeaking SpeakingFunc
}

var _ service.VoiceConnector = (*Recorder)(nil)

func NewRecorder(s *discordgo.Session, guildID string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{s: s, guildID: guildID, log: log.With("component", "recorder")}
}

// OnSpeaking fija el destino de los eventos de habla; se llama antes del primer JoinVoice.
func (r *Recorder) OnSpeaking(fn SpeakingFunc) {
	r.mu.Lock()
	r.onSpeaking = fn
	r.mu.Unlock()
}

func (r *Recorder) JoinVoice(ctx context.Context, channelID string) error {
	// sin deaf: necesitamos los eventos de speaking
	vc, err := r.s.ChannelVoiceJoin(r.guildID, channelID, false, false)
	if err != nil {
		return fmt.Errorf("join voice %s: %w", channelID, mapErr(err))
	}
	vc.AddHandler(r.speakingHandler)

	r.mu.Lock()
	r.vc = vc
	r.mu.Unlock()
	r.log.Info("voice connected", "channel_id", channelID)
	return nil
}

func (r *Recorder) LeaveVoice(ctx context.Context) error {
	r.mu.Lock()
	vc := r.vc
	r.vc = nil
	r.mu.Unlock()
	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		return fmt.Errorf("leave voice: %w", err)
	}
	r.log.Info("voice disconnected")
	return nil
}

// dropped limpia la referencia cuando la desconexión vino del lado de Discord.
func (r *Recorder) dropped() {
	r.mu.Lock()
	r.vc = nil
	r.mu.Unlock()
}

func (r *Recorder) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vc != nil
}

func (r *Recorder) ChannelHumans(ctx context.Context, channelID string) (int, error) {
	g, err := r.s.State.Guild(r.guildID)
	if err != nil {
		return 0, mapErr(err)
	}
	r.s.State.RLock()
	userIDs := make([]string, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			userIDs = append(userIDs, vs.UserID)
		}
	}
	r.s.State.RUnlock()

	n := 0
	for _, uid := range userIDs {
		if !stateIsBot(r.s.State, r.guildID, uid) {
			n++
		}
	}
	return n, nil
}

func (r *Recorder) speakingHandler(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	r.mu.Lock()
	fn := r.onSpeaking
	r.mu.Unlock()
	if fn == nil {
		return
	}
	fn(context.Background(), vs.UserID, stateIsBot(r.s.State, r.guildID, vs.UserID), vs.Speaking)
}
