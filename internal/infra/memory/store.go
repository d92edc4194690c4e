package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/domain"
)

type questionKey struct {
	roomID int64
	number int
}

// Store is an in-memory implementation of app.Store. Question transactions
// are serialized by a mutex per (room, question) and applied on commit.
type Store struct {
	seq atomic.Int64

	mu         sync.RWMutex
	rooms      map[int64]domain.Room
	teams      map[int64]domain.Team
	users      map[int64]domain.User
	questions  map[questionKey]domain.Question
	teamStarts map[int64]map[int64]domain.QuestionTeamStart
	answers    map[int64]domain.Answer

	locksMu sync.Mutex
	locks   map[questionKey]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		rooms:      make(map[int64]domain.Room),
		teams:      make(map[int64]domain.Team),
		users:      make(map[int64]domain.User),
		questions:  make(map[questionKey]domain.Question),
		teamStarts: make(map[int64]map[int64]domain.QuestionTeamStart),
		answers:    make(map[int64]domain.Answer),
		locks:      make(map[questionKey]*sync.Mutex),
	}
}

func (s *Store) nextID() int64 {
	return s.seq.Add(1)
}

func (s *Store) RoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.Code == code {
			return cloneRoom(r), nil
		}
	}
	return domain.Room{}, domain.ErrRoomNotFound
}

func (s *Store) RoomByID(_ context.Context, id int64) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(r), nil
}

func (s *Store) CreateRoom(_ context.Context, room domain.Room) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Code == room.Code {
			return domain.Room{}, domain.ErrRoomCodeTaken
		}
	}
	room.ID = s.nextID()
	room = cloneRoom(room)
	s.rooms[room.ID] = room
	return cloneRoom(room), nil
}

func (s *Store) UpdateRoom(_ context.Context, room domain.Room) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[room.ID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	cur.IsActive = room.IsActive
	cur.AllowResubmission = room.AllowResubmission
	cur.ScoreTable = append([]int(nil), room.ScoreTable...)
	s.rooms[room.ID] = cur
	return cloneRoom(cur), nil
}

// DeleteRoom drops the room and everything that belongs to it.
func (s *Store) DeleteRoom(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, id)
	for uid, u := range s.users {
		if u.RoomID == id {
			delete(s.users, uid)
		}
	}
	for key, q := range s.questions {
		if key.roomID == id {
			delete(s.teamStarts, q.ID)
			delete(s.questions, key)
		}
	}
	for aid, a := range s.answers {
		if a.RoomID == id {
			delete(s.answers, aid)
		}
	}
	return nil
}

func (s *Store) Teams(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Team(_ context.Context, id int64) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return t, nil
}

// SeedTeams upserts the catalog by team id.
func (s *Store) SeedTeams(_ context.Context, teams []domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range teams {
		s.teams[t.ID] = t
	}
	return nil
}

func (s *Store) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.RoomID == user.RoomID && u.Username == user.Username {
			u.TeamID = user.TeamID
			u.SessionToken = user.SessionToken
			s.users[id] = u
			return u, nil
		}
	}
	user.ID = s.nextID()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) UserByToken(_ context.Context, roomID int64, token string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.RoomID == roomID && u.SessionToken == token {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) RoomUsers(_ context.Context, roomID int64) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.RoomID == roomID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) EnsureQuestion(_ context.Context, roomID int64, number int) (domain.Question, error) {
	key := questionKey{roomID: roomID, number: number}
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[key]; ok {
		return cloneQuestion(q), nil
	}
	if _, ok := s.rooms[roomID]; !ok {
		return domain.Question{}, domain.ErrRoomNotFound
	}
	q := domain.Question{
		ID:         s.nextID(),
		RoomID:     roomID,
		Number:     number,
		AnswerType: domain.FreeText,
	}
	s.questions[key] = q
	return cloneQuestion(q), nil
}

func (s *Store) Question(_ context.Context, roomID int64, number int) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionKey{roomID: roomID, number: number}]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) Answer(_ context.Context, roomID, answerID int64) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[answerID]
	if !ok || a.RoomID != roomID {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	return a, nil
}

func (s *Store) ListAnswers(_ context.Context, filter app.AnswerFilter) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if a.RoomID != filter.RoomID {
			continue
		}
		if filter.QuestionNumber != nil && a.QuestionNumber != *filter.QuestionNumber {
			continue
		}
		if filter.UserID != 0 && a.UserID != filter.UserID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) questionLock(key questionKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// InQuestionTx runs fn against a private copy of the question and its
// answers and publishes the copy only when fn succeeds.
func (s *Store) InQuestionTx(ctx context.Context, roomID int64, number int, fn func(ctx context.Context, tx app.QuestionTx) error) error {
	key := questionKey{roomID: roomID, number: number}
	lock := s.questionLock(key)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.begin(key)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(key, tx)
}

func (s *Store) begin(key questionKey) (*questionTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[key]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	tx := &questionTx{
		store:    s,
		question: cloneQuestion(q),
		answers:  make(map[int64]domain.Answer),
		deleted:  make(map[int64]struct{}),
		starts:   make(map[int64]domain.QuestionTeamStart),
	}
	for id, a := range s.answers {
		if a.RoomID == key.roomID && a.QuestionNumber == key.number {
			tx.answers[id] = a
		}
	}
	for teamID, st := range s.teamStarts[q.ID] {
		tx.starts[teamID] = st
	}
	return tx, nil
}

// commit fails when the room was deleted while the transaction ran.
func (s *Store) commit(key questionKey, tx *questionTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[key.roomID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.questions[key] = tx.question
	for id := range tx.deleted {
		delete(s.answers, id)
	}
	for id, a := range tx.answers {
		s.answers[id] = a
	}
	if len(tx.starts) > 0 {
		starts := make(map[int64]domain.QuestionTeamStart, len(tx.starts))
		for teamID, st := range tx.starts {
			starts[teamID] = st
		}
		s.teamStarts[tx.question.ID] = starts
	}
	return nil
}

type questionTx struct {
	store    *Store
	question domain.Question
	answers  map[int64]domain.Answer
	deleted  map[int64]struct{}
	starts   map[int64]domain.QuestionTeamStart
}

func (tx *questionTx) Question() domain.Question {
	return cloneQuestion(tx.question)
}

func (tx *questionTx) SaveQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	q.ID = tx.question.ID
	q.RoomID = tx.question.RoomID
	q.Number = tx.question.Number
	tx.question = cloneQuestion(q)
	return cloneQuestion(q), nil
}

func (tx *questionTx) TeamStarts(_ context.Context) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(tx.starts))
	for teamID, st := range tx.starts {
		out[teamID] = st.StartTime
	}
	return out, nil
}

func (tx *questionTx) CreateTeamStart(_ context.Context, teamID int64, at time.Time) (domain.QuestionTeamStart, error) {
	if _, ok := tx.starts[teamID]; ok {
		return domain.QuestionTeamStart{}, domain.ErrTeamStartExists
	}
	st := domain.QuestionTeamStart{
		ID:         tx.store.nextID(),
		QuestionID: tx.question.ID,
		TeamID:     teamID,
		StartTime:  at,
	}
	tx.starts[teamID] = st
	return st, nil
}

func (tx *questionTx) SubmittedOn(_ context.Context, userID int64, day domain.Day) (bool, error) {
	for _, a := range tx.answers {
		if a.UserID == userID && a.SubmissionDay == day {
			return true, nil
		}
	}
	return false, nil
}

func (tx *questionTx) InsertAnswer(_ context.Context, a domain.Answer) (domain.Answer, error) {
	a.ID = tx.store.nextID()
	tx.answers[a.ID] = a
	return a, nil
}

func (tx *questionTx) Answers(_ context.Context) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(tx.answers))
	for _, a := range tx.answers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *questionTx) UpdateAnswer(_ context.Context, a domain.Answer) error {
	if _, ok := tx.answers[a.ID]; !ok {
		return domain.ErrAnswerNotFound
	}
	tx.answers[a.ID] = a
	return nil
}

func (tx *questionTx) DeleteAnswer(_ context.Context, answerID int64) error {
	if _, ok := tx.answers[answerID]; !ok {
		return domain.ErrAnswerNotFound
	}
	delete(tx.answers, answerID)
	tx.deleted[answerID] = struct{}{}
	return nil
}

func (tx *questionTx) SaveScores(_ context.Context, answers []domain.Answer) error {
	for _, a := range answers {
		cur, ok := tx.answers[a.ID]
		if !ok {
			return domain.ErrAnswerNotFound
		}
		cur.Score = a.Score
		cur.ElapsedMS = a.ElapsedMS
		tx.answers[a.ID] = cur
	}
	return nil
}

func cloneRoom(r domain.Room) domain.Room {
	r.ScoreTable = append([]int(nil), r.ScoreTable...)
	return r
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.Choices != nil {
		q.Choices = append([]string(nil), q.Choices...)
	}
	return q
}
