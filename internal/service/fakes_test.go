package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/comms"
	"github.com/Freeeeeet/trial_scheduler/internal/config"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDB is an in-memory stand-in for the postgres schema, including its
// unique indexes. Rows are copied in and out like a real store.
type memDB struct {
	mu sync.Mutex

	nextID       int64
	cases        map[int64]model.Case
	blocks       map[int64]model.SlotBlock
	apps         map[int64]model.JurorApplication
	requests     map[int64]model.RescheduleRequest
	meetings     map[int64]model.TrialMeeting
	participants map[int64]model.Participant
	users        map[int64]model.User
	notes        []model.Notification
}

func newMemDB() *memDB {
	return &memDB{
		cases:        map[int64]model.Case{},
		blocks:       map[int64]model.SlotBlock{},
		apps:         map[int64]model.JurorApplication{},
		requests:     map[int64]model.RescheduleRequest{},
		meetings:     map[int64]model.TrialMeeting{},
		participants: map[int64]model.Participant{},
		users:        map[int64]model.User{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	cases        map[int64]model.Case
	blocks       map[int64]model.SlotBlock
	apps         map[int64]model.JurorApplication
	requests     map[int64]model.RescheduleRequest
	meetings     map[int64]model.TrialMeeting
	participants map[int64]model.Participant
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		cases:        cloneMap(db.cases),
		blocks:       cloneMap(db.blocks),
		apps:         cloneMap(db.apps),
		requests:     cloneMap(db.requests),
		meetings:     cloneMap(db.meetings),
		participants: cloneMap(db.participants),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cases = s.cases
	db.blocks = s.blocks
	db.apps = s.apps
	db.requests = s.requests
	db.meetings = s.meetings
	db.participants = s.participants
}

// fakeTx rolls the whole memDB back when fn fails. Nested calls join the outer one.
type fakeTx struct{ db *memDB }

type fakeTxKey struct{}

func (t fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	snap := t.db.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type fakeCases struct{ db *memDB }

func (f fakeCases) Create(_ context.Context, c *model.Case) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c.ID = f.db.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.db.cases[c.ID] = *c
	return nil
}

func (f fakeCases) GetByID(_ context.Context, id int64) (*model.Case, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.cases[id]
	if !ok || c.DeletedAt != nil {
		return nil, nil
	}
	return &c, nil
}

func occupiesSlot(c model.Case) bool {
	return c.AdminStatus == model.AdminStatusApproved && c.DeletedAt == nil && c.AttorneyStatus != model.AttorneyStatusCancelled
}

func (f fakeCases) FindApprovedAtSlot(_ context.Context, slot model.Slot, excludeID int64) (*model.Case, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, c := range f.db.cases {
		if c.ID != excludeID && occupiesSlot(c) && c.Slot() == slot {
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeCases) Update(_ context.Context, c *model.Case) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cur, ok := f.db.cases[c.ID]
	if !ok || cur.DeletedAt != nil {
		return fmt.Errorf("case not found")
	}
	if occupiesSlot(*c) {
		for _, other := range f.db.cases {
			if other.ID != c.ID && occupiesSlot(other) && other.Slot() == c.Slot() {
				return fmt.Errorf("update case: %w", base.ErrDuplicate)
			}
		}
	}
	cur.AdminStatus = c.AdminStatus
	cur.AttorneyStatus = c.AttorneyStatus
	cur.ScheduledDate = c.ScheduledDate
	cur.ScheduledTime = c.ScheduledTime
	cur.RescheduleRequired = c.RescheduleRequired
	cur.UpdatedAt = time.Now()
	f.db.cases[c.ID] = cur
	c.UpdatedAt = cur.UpdatedAt
	return nil
}

func (f fakeCases) SoftDelete(_ context.Context, id int64, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.cases[id]
	if !ok || c.DeletedAt != nil {
		return fmt.Errorf("case not found")
	}
	c.DeletedAt = &at
	f.db.cases[id] = c
	return nil
}

func (f fakeCases) ListByAttorney(_ context.Context, attorneyID int64) ([]*model.Case, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Case
	for _, c := range f.db.cases {
		if c.AttorneyID == attorneyID && c.DeletedAt == nil {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCases) ListByJuror(_ context.Context, jurorID int64) ([]*model.Case, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Case
	for _, a := range f.db.apps {
		if a.JurorID != jurorID || !a.IsApproved() {
			continue
		}
		if c, ok := f.db.cases[a.CaseID]; ok && c.DeletedAt == nil {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeBlocks struct{ db *memDB }

func sameTime(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f fakeBlocks) Create(_ context.Context, b *model.SlotBlock) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.blocks {
		if existing.Date == b.Date && sameTime(existing.Time, b.Time) {
			return false, nil
		}
	}
	b.ID = f.db.id()
	b.CreatedAt = time.Now()
	f.db.blocks[b.ID] = *b
	return true, nil
}

func (f fakeBlocks) GetExact(_ context.Context, date string, tm *string) (*model.SlotBlock, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.blocks {
		if b.Date == date && sameTime(b.Time, tm) {
			return &b, nil
		}
	}
	return nil, nil
}

func (f fakeBlocks) FindCovering(_ context.Context, slot model.Slot) (*model.SlotBlock, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.blocks {
		if b.Date == slot.Date && (b.Time == nil || *b.Time == slot.Time) {
			return &b, nil
		}
	}
	return nil, nil
}

func (f fakeBlocks) Delete(_ context.Context, date string, tm *string) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, b := range f.db.blocks {
		if b.Date == date && sameTime(b.Time, tm) {
			delete(f.db.blocks, id)
			n++
		}
	}
	return n, nil
}

func (f fakeBlocks) ListBetween(_ context.Context, from, to string) ([]*model.SlotBlock, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.SlotBlock
	for _, b := range f.db.blocks {
		if b.Date >= from && b.Date <= to {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

type fakeApps struct{ db *memDB }

func (f fakeApps) Create(_ context.Context, a *model.JurorApplication) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.apps {
		if existing.CaseID == a.CaseID && existing.JurorID == a.JurorID {
			return fmt.Errorf("create application: %w", base.ErrDuplicate)
		}
	}
	a.ID = f.db.id()
	a.AppliedAt = time.Now()
	f.db.apps[a.ID] = *a
	return nil
}

func (f fakeApps) GetByID(_ context.Context, id int64) (*model.JurorApplication, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.apps[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f fakeApps) GetByCaseAndJuror(_ context.Context, caseID, jurorID int64) (*model.JurorApplication, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.apps {
		if a.CaseID == caseID && a.JurorID == jurorID {
			return &a, nil
		}
	}
	return nil, nil
}

func (f fakeApps) CountApproved(_ context.Context, caseID int64) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, a := range f.db.apps {
		if a.CaseID == caseID && a.Status == model.ApplicationStatusApproved {
			n++
		}
	}
	return n, nil
}

func (f fakeApps) ListByCase(_ context.Context, caseID int64) ([]*model.JurorApplication, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.JurorApplication
	for _, a := range f.db.apps {
		if a.CaseID == caseID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeApps) UpdateStatus(_ context.Context, id int64, status model.ApplicationStatus, reviewerID *int64, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.apps[id]
	if !ok {
		return fmt.Errorf("application not found")
	}
	a.Status = status
	a.ReviewedBy = reviewerID
	a.ReviewedAt = &at
	f.db.apps[id] = a
	return nil
}

func (f fakeApps) DeleteByCase(_ context.Context, caseID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, a := range f.db.apps {
		if a.CaseID == caseID {
			delete(f.db.apps, id)
			n++
		}
	}
	return n, nil
}

type fakeRequests struct{ db *memDB }

func (f fakeRequests) Create(_ context.Context, req *model.RescheduleRequest) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.requests {
		if r.CaseID == req.CaseID && r.IsPending() {
			return fmt.Errorf("create reschedule request: %w", base.ErrDuplicate)
		}
	}
	req.ID = f.db.id()
	req.CreatedAt = time.Now()
	f.db.requests[req.ID] = *req
	return nil
}

func (f fakeRequests) GetByID(_ context.Context, id int64) (*model.RescheduleRequest, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	r, ok := f.db.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f fakeRequests) GetPendingByCase(_ context.Context, caseID int64) (*model.RescheduleRequest, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.requests {
		if r.CaseID == caseID && r.IsPending() {
			return &r, nil
		}
	}
	return nil, nil
}

func (f fakeRequests) Update(_ context.Context, req *model.RescheduleRequest) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.requests[req.ID]; !ok {
		return fmt.Errorf("reschedule request not found")
	}
	f.db.requests[req.ID] = *req
	return nil
}

func (f fakeRequests) ListPending(_ context.Context) ([]*model.RescheduleRequest, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.RescheduleRequest
	for _, r := range f.db.requests {
		if r.IsPending() {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeMeetings struct{ db *memDB }

func (f fakeMeetings) Create(_ context.Context, m *model.TrialMeeting) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.meetings {
		if existing.CaseID == m.CaseID {
			return false, nil
		}
	}
	m.ID = f.db.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.db.meetings[m.ID] = *m
	return true, nil
}

func (f fakeMeetings) GetByCaseID(_ context.Context, caseID int64) (*model.TrialMeeting, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.meetings {
		if m.CaseID == caseID {
			return &m, nil
		}
	}
	return nil, nil
}

func (f fakeMeetings) TransitionStatus(_ context.Context, id int64, from, to model.MeetingStatus) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.meetings[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	f.db.meetings[id] = m
	return true, nil
}

func (f fakeMeetings) UpdateStatus(_ context.Context, id int64, status model.MeetingStatus) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.meetings[id]
	if !ok {
		return fmt.Errorf("meeting not found")
	}
	m.Status = status
	f.db.meetings[id] = m
	return nil
}

func (f fakeMeetings) ReplaceRoom(_ context.Context, m *model.TrialMeeting) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	existing, ok := f.db.meetings[m.ID]
	if !ok {
		return fmt.Errorf("meeting not found")
	}
	m.CaseID = existing.CaseID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now()
	f.db.meetings[m.ID] = *m
	return nil
}

func (f fakeMeetings) ListWithStaleParticipants(_ context.Context) ([]*model.TrialMeeting, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.TrialMeeting
	for _, m := range f.db.meetings {
		if m.Status != model.MeetingStatusCompleted && m.Status != model.MeetingStatusRetired {
			continue
		}
		for _, p := range f.db.participants {
			if p.MeetingID == m.ID && p.IsActive() {
				m := m
				out = append(out, &m)
				break
			}
		}
	}
	return out, nil
}

type fakeParticipants struct{ db *memDB }

func (f fakeParticipants) Create(_ context.Context, p *model.Participant) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.participants {
		if existing.MeetingID == p.MeetingID && existing.UserID == p.UserID &&
			existing.UserType == p.UserType && existing.IsActive() {
			return fmt.Errorf("create participant: %w", base.ErrDuplicate)
		}
	}
	p.ID = f.db.id()
	f.db.participants[p.ID] = *p
	return nil
}

func (f fakeParticipants) GetActive(_ context.Context, meetingID, userID int64, userType model.UserType) (*model.Participant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.participants {
		if p.MeetingID == meetingID && p.UserID == userID && p.UserType == userType && p.IsActive() {
			return &p, nil
		}
	}
	return nil, nil
}

func (f fakeParticipants) MarkLeft(_ context.Context, id int64, at time.Time) error {
	return f.close(id, func(p *model.Participant) { p.LeftAt = &at })
}

func (f fakeParticipants) MarkRemoved(_ context.Context, id int64, at time.Time) error {
	return f.close(id, func(p *model.Participant) { p.RemovedAt = &at })
}

func (f fakeParticipants) close(id int64, mark func(p *model.Participant)) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.participants[id]
	if !ok || !p.IsActive() {
		return fmt.Errorf("participant not found")
	}
	mark(&p)
	f.db.participants[id] = p
	return nil
}

func (f fakeParticipants) ListActive(_ context.Context, meetingID int64) ([]*model.Participant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Participant
	for _, p := range f.db.participants {
		if p.MeetingID == meetingID && p.IsActive() {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeParticipants) CloseAllActive(_ context.Context, meetingID int64, at time.Time) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, p := range f.db.participants {
		if p.MeetingID == meetingID && p.IsActive() {
			p.LeftAt = &at
			f.db.participants[id] = p
			n++
		}
	}
	return n, nil
}

type fakeUsers struct{ db *memDB }

func (f fakeUsers) ListActive(_ context.Context, types ...model.UserType) ([]*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.User
	for _, u := range f.db.users {
		if !u.IsActive {
			continue
		}
		for _, t := range types {
			if u.UserType == t {
				u := u
				out = append(out, &u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// recordingSink keeps every notification in memory.
type recordingSink struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingSink) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) ofType(typ string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, n model.Notification, _ ...model.UserType) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, n.Type)
	return 1, nil
}

// fakeProvider mimics the communication provider and records what is live.
type fakeProvider struct {
	mu sync.Mutex

	seq      int
	rooms    map[string]map[string]comms.RoomRole
	threads  map[string]map[string]bool
	calls    map[string]int
	failures map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		rooms:    map[string]map[string]comms.RoomRole{},
		threads:  map[string]map[string]bool{},
		calls:    map[string]int{},
		failures: map[string]error{},
	}
}

func (p *fakeProvider) failOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

func (p *fakeProvider) enter(op string) error {
	p.calls[op]++
	return p.failures[op]
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) roomMembers(roomID string) map[string]comms.RoomRole {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneMap(p.rooms[roomID])
}

func (p *fakeProvider) threadMembers(threadID string) map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneMap(p.threads[threadID])
}

func (p *fakeProvider) CreateRoom(_ context.Context, _ comms.RoomOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateRoom"); err != nil {
		return "", err
	}
	p.seq++
	id := fmt.Sprintf("room-%d", p.seq)
	p.rooms[id] = map[string]comms.RoomRole{}
	return id, nil
}

func (p *fakeProvider) AddParticipantToRoom(_ context.Context, roomID, identity string, role comms.RoomRole) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("AddParticipantToRoom"); err != nil {
		return err
	}
	p.rooms[roomID][identity] = role
	return nil
}

func (p *fakeProvider) RemoveParticipantFromRoom(_ context.Context, roomID, identity string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("RemoveParticipantFromRoom"); err != nil {
		return err
	}
	delete(p.rooms[roomID], identity)
	return nil
}

func (p *fakeProvider) CreateChatThread(_ context.Context, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateChatThread"); err != nil {
		return "", err
	}
	p.seq++
	id := fmt.Sprintf("thread-%d", p.seq)
	p.threads[id] = map[string]bool{}
	return id, nil
}

func (p *fakeProvider) AddParticipantToChat(_ context.Context, threadID, _, identity, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("AddParticipantToChat"); err != nil {
		return err
	}
	p.threads[threadID][identity] = true
	return nil
}

func (p *fakeProvider) RemoveParticipantFromChat(_ context.Context, threadID, _, identity string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("RemoveParticipantFromChat"); err != nil {
		return err
	}
	delete(p.threads[threadID], identity)
	return nil
}

func (p *fakeProvider) CreateIdentity(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateIdentity"); err != nil {
		return "", err
	}
	p.seq++
	return fmt.Sprintf("ident-%d", p.seq), nil
}

func (p *fakeProvider) IssueToken(_ context.Context, identity string, _ ...comms.Scope) (comms.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("IssueToken"); err != nil {
		return comms.Token{}, err
	}
	return comms.Token{Value: "token-" + identity, ExpiresOn: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

var errProvider = errors.New("provider unavailable")

// fixture wires every service over one memDB with a fixed clock.
type fixture struct {
	db       *memDB
	sink     *recordingSink
	bcast    *recordingBroadcaster
	provider *fakeProvider
	now      time.Time

	registry     *SlotRegistry
	gate         *CapacityGate
	cases        *CaseService
	applications *ApplicationService
	reschedules  *RescheduleService
	trials       *TrialService
}

const (
	attorneyID = int64(1001)
	adminID    = int64(9001)
)

var (
	attorney = Actor{ID: attorneyID, Type: model.UserTypeAttorney, Name: "Ada Attorney"}
	admin    = Actor{ID: adminID, Type: model.UserTypeAdmin, Name: "Root Admin"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newMemDB()
	db.users[adminID] = model.User{ID: adminID, UserType: model.UserTypeAdmin, IsActive: true}

	f := &fixture{
		db:       db,
		sink:     &recordingSink{},
		bcast:    &recordingBroadcaster{},
		provider: newFakeProvider(),
		now:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	policy := config.DefaultPolicy()
	policy.TimezoneOffsets = map[string]int{"NY": -300, "CA": -480}

	logger := zap.NewNop()
	locker := lock.NewLocalLocker()
	tx := fakeTx{db: db}
	cases := fakeCases{db: db}
	apps := fakeApps{db: db}

	f.registry = NewSlotRegistry(cases, fakeBlocks{db: db}, f.bcast, logger)
	f.gate = NewCapacityGate(cases, apps, policy)
	f.trials = NewTrialService(cases, fakeMeetings{db: db}, fakeParticipants{db: db}, apps, f.provider, tx, locker, f.sink,
		TrialServiceConfig{Policy: policy, ProviderTimeout: time.Second}, logger)
	f.cases = NewCaseService(cases, fakeRequests{db: db}, f.registry, f.gate, f.trials, tx, locker, f.sink, policy, logger)
	f.applications = NewApplicationService(cases, apps, f.gate, tx, locker, f.sink, logger)
	f.reschedules = NewRescheduleService(cases, fakeRequests{db: db}, apps, f.trials, f.registry, fakeUsers{db: db}, tx, locker, f.sink, logger)

	clock := func() time.Time { return f.now }
	f.cases.now = clock
	f.applications.now = clock
	f.reschedules.now = clock
	f.trials.now = clock

	return f
}

func (f *fixture) submit(t *testing.T, date, tm string) *model.Case {
	t.Helper()
	c, err := f.cases.Submit(context.Background(), attorneyID, SubmitInput{
		Title:         fmt.Sprintf("State v. Case %s %s", date, tm),
		ScheduledDate: date,
		ScheduledTime: tm,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) approved(t *testing.T, date, tm string) *model.Case {
	t.Helper()
	c := f.submit(t, date, tm)
	res, err := f.cases.Review(context.Background(), c.ID, adminID, ReviewDecision{Approve: true})
	require.NoError(t, err)
	require.Nil(t, res.Conflict)
	return res.Case
}

// seatJurors applies and approves n jurors with ids starting at 5000.
func (f *fixture) seatJurors(t *testing.T, caseID int64, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for i := 0; i < n; i++ {
		app, err := f.applications.Apply(ctx, caseID, int64(5000+i))
		require.NoError(t, err)
		ids = append(ids, app.ID)
	}
	if n > 0 {
		_, err := f.applications.BatchApprove(ctx, caseID, ids, admin)
		require.NoError(t, err)
	}
	return ids
}

// awaitingTrial returns a case submitted for trial with five seated jurors.
func (f *fixture) awaitingTrial(t *testing.T, date, tm string) *model.Case {
	t.Helper()
	c := f.approved(t, date, tm)
	f.seatJurors(t, c.ID, 5)
	res, err := f.cases.SubmitWarRoom(context.Background(), c.ID, attorney)
	require.NoError(t, err)
	return res.Case
}

func (f *fixture) caseRow(t *testing.T, id int64) model.Case {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.cases[id]
	require.True(t, ok)
	return c
}

func (f *fixture) countApps(caseID int64) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, a := range f.db.apps {
		if a.CaseID == caseID {
			n++
		}
	}
	return n
}

func (f *fixture) countMeetings(caseID int64) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, m := range f.db.meetings {
		if m.CaseID == caseID {
			n++
		}
	}
	return n
}

func (f *fixture) activeParticipants(meetingID, userID int64) []model.Participant {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Participant
	for _, p := range f.db.participants {
		if p.MeetingID == meetingID && p.UserID == userID && p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}
