package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

// fakePlatform graba cada llamada; todos los métodos son seguros para uso concurrente.
type fakePlatform struct {
	mu sync.Mutex

	members   map[string]Member
	nextID    int
	messages  map[string]string // id -> contenido vigente
	sent      []string
	edits     []string
	deletes   []string
	reactions map[string][]Reaction
	added     []string // emoji IDs en orden
	removed   []string // "key/user"
	roleAdds  map[string][]string
	roleDels  map[string][]string

	failSend   error
	failDelete error
	failRoles  error
	// onSend corre antes de publicar, fuera del lock (eventos que llegan mientras se postea)
	onSend func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:   map[string]Member{},
		messages:  map[string]string{},
		reactions: map[string][]Reaction{},
		roleAdds:  map[string][]string{},
		roleDels:  map[string][]string{},
	}
}

func (f *fakePlatform) addMember(m Member) {
	f.mu.Lock()
	f.members[m.UserID] = m
	f.mu.Unlock()
}

func (f *fakePlatform) setReactions(messageID string, rs ...Reaction) {
	f.mu.Lock()
	f.reactions[messageID] = rs
	f.mu.Unlock()
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return "", f.failSend
	}
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages[id] = content
	f.sent = append(f.sent, channelID+"/"+id)
	return id, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, _, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[messageID]; !ok {
		return domain.ErrNotFound
	}
	f.messages[messageID] = content
	f.edits = append(f.edits, messageID)
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.messages[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	delete(f.messages, messageID)
	return nil
}

func (f *fakePlatform) AddReaction(_ context.Context, _, _, emojiID string) error {
	f.mu.Lock()
	f.added = append(f.added, emojiID)
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) ListReactions(_ context.Context, _, messageID string) ([]Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.reactions[messageID]), nil
}

func (f *fakePlatform) RemoveReaction(_ context.Context, _, _ string, r Reaction, userID string) error {
	f.mu.Lock()
	f.removed = append(f.removed, r.Key+"/"+userID)
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) AddRoles(_ context.Context, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRoles != nil {
		return f.failRoles
	}
	f.roleAdds[userID] = append(f.roleAdds[userID], roleIDs...)
	if m, ok := f.members[userID]; ok {
		m.Roles = append(slices.Clone(m.Roles), roleIDs...)
		f.members[userID] = m
	}
	return nil
}

func (f *fakePlatform) AddRole(ctx context.Context, userID, roleID string) error {
	return f.AddRoles(ctx, userID, []string{roleID})
}

func (f *fakePlatform) RemoveRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleDels[userID] = append(f.roleDels[userID], roleID)
	if m, ok := f.members[userID]; ok {
		m.Roles = slices.DeleteFunc(slices.Clone(m.Roles), func(r string) bool { return r == roleID })
		f.members[userID] = m
	}
	return nil
}

func (f *fakePlatform) Member(_ context.Context, userID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return Member{}, fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	return m, nil
}

// calls es una copia de lo que grabó el fake.
type calls struct {
	sent, edits, deletes, added, removed []string
	roleAdds, roleDels                   map[string][]string
}

func (f *fakePlatform) recorded() calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return calls{
		sent:     slices.Clone(f.sent),
		edits:    slices.Clone(f.edits),
		deletes:  slices.Clone(f.deletes),
		added:    slices.Clone(f.added),
		removed:  slices.Clone(f.removed),
		roleAdds: cloneRoles(f.roleAdds),
		roleDels: cloneRoles(f.roleDels),
	}
}

func cloneRoles(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// fakeVoice registra joins/leaves del grabador.
type fakeVoice struct {
	mu     sync.Mutex
	humans map[string]int
	joins  []string
	leaves int
	// onJoin corre durante el connect, fuera del lock
	onJoin func()
}

func (v *fakeVoice) JoinVoice(_ context.Context, channelID string) error {
	v.mu.Lock()
	v.joins = append(v.joins, channelID)
	hook := v.onJoin
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (v *fakeVoice) setHumans(channelID string, n int) {
	v.mu.Lock()
	v.humans[channelID] = n
	v.mu.Unlock()
}

func (v *fakeVoice) LeaveVoice(context.Context) error {
	v.mu.Lock()
	v.leaves++
	v.mu.Unlock()
	return nil
}

func (v *fakeVoice) ChannelHumans(_ context.Context, channelID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.humans[channelID], nil
}

func (v *fakeVoice) joinCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.joins)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(unix int64) *fakeClock { return &fakeClock{t: time.Unix(unix, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeAfter guarda los callbacks agendados para dispararlos a mano.
type fakeAfter struct {
	mu    sync.Mutex
	tasks []*afterTask
}

type afterTask struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (a *fakeAfter) After(d time.Duration, f func()) func() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := &afterTask{d: d, f: f}
	a.tasks = append(a.tasks, t)
	return func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// FireAll ejecuta los callbacks pendientes (no detenidos).
func (a *fakeAfter) FireAll() {
	a.mu.Lock()
	var run []func()
	for _, t := range a.tasks {
		if !t.stopped && !t.fired {
			t.fired = true
			run = append(run, t.f)
		}
	}
	a.mu.Unlock()
	for _, f := range run {
		f()
	}
}

// memBackend: Backend en memoria.
type memBackend struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (b *memBackend) Get(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.docs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (b *memBackend) Put(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.docs == nil {
		b.docs = map[string][]byte{}
	}
	b.docs[name] = append([]byte(nil), data...)
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const (
	voteChannel = "100"
	upEmoji     = "201"
	downEmoji   = "202"
	memberRole  = "300"
	extraRole   = "301"
)

type pollFixture struct {
	store    *storage.Store
	platform *fakePlatform
	clock    *fakeClock
	after    *fakeAfter
	svc      *PollService
}

func newPollFixture(t *testing.T, votesRequired int) *pollFixture {
	t.Helper()
	fx := &pollFixture{
		store:    storage.New(&memBackend{}, storage.WithLogger(quietLogger())),
		platform: newFakePlatform(),
		clock:    newFakeClock(1_700_000_000),
		after:    &fakeAfter{},
	}
	_, err := fx.store.Settings.Update(func(s *domain.Settings) error {
		s.MemberVote.Enabled = true
		s.MemberVote.ChannelID = voteChannel
		s.MemberVote.UpvoteEmojiID = upEmoji
		s.MemberVote.DownvoteEmojiID = downEmoji
		s.MemberVote.VotesRequired = votesRequired
		s.MemberVote.MemberRoleID = memberRole
		s.MemberVote.AdditionalRoles = []string{extraRole}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	fx.svc = NewPollService(fx.store, fx.platform,
		WithPollLogger(quietLogger()),
		WithPollClock(fx.clock.Now),
		WithPollAfter(fx.after.After),
	)
	return fx
}

func voters(prefix string, n int, bot bool) []Voter {
	out := make([]Voter, n)
	for i := range out {
		out[i] = Voter{ID: fmt.Sprintf("%s%d", prefix, i), Bot: bot}
	}
	return out
}

// members registra como miembros a todos los votantes dados.
func (fx *pollFixture) members(vs ...[]Voter) {
	for _, group := range vs {
		for _, v := range group {
			fx.platform.addMember(Member{UserID: v.ID, Bot: v.Bot})
		}
	}
}
