package app

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"teamquiz-service/internal/domain"
	"teamquiz-service/internal/scoring"
)

// CreateRoomRequest describes a new competition. Zero values take the
// service defaults; a nil ScoreTable takes the default table.
type CreateRoomRequest struct {
	Code              string
	TotalQuestions    int
	AllowResubmission bool
	ScoreTable        []int
}

// CreateRoom opens a new room.
func (s *ScoringService) CreateRoom(ctx context.Context, token string, req CreateRoomRequest) (domain.Room, error) {
	if err := s.requireAdmin(ctx, token); err != nil {
		return domain.Room{}, err
	}
	table := req.ScoreTable
	if table == nil {
		table = s.opts.ScoreTable
	}
	if err := scoring.ValidateScoreTable(table); err != nil {
		return domain.Room{}, err
	}
	total := req.TotalQuestions
	if total <= 0 {
		total = s.opts.TotalQuestions
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}
	return s.store.CreateRoom(ctx, domain.Room{
		Code:              code,
		IsActive:          true,
		TotalQuestions:    total,
		AllowResubmission: req.AllowResubmission,
		ScoreTable:        append([]int(nil), table...),
		CreatedAt:         s.now(),
	})
}

// RoomPatch changes room settings. Nil fields are left alone.
type RoomPatch struct {
	IsActive          *bool
	AllowResubmission *bool
	ScoreTable        []int
}

// UpdateRoom applies patch. A new score table takes effect on the next rank
// pass; scores already stored are not touched.
func (s *ScoringService) UpdateRoom(ctx context.Context, token, roomRef string, patch RoomPatch) (domain.Room, error) {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return domain.Room{}, err
	}
	if patch.IsActive != nil {
		room.IsActive = *patch.IsActive
	}
	if patch.AllowResubmission != nil {
		room.AllowResubmission = *patch.AllowResubmission
	}
	if patch.ScoreTable != nil {
		if err := scoring.ValidateScoreTable(patch.ScoreTable); err != nil {
			return domain.Room{}, err
		}
		room.ScoreTable = append([]int(nil), patch.ScoreTable...)
	}
	return s.store.UpdateRoom(ctx, room)
}

// DeleteRoom removes a room and everything recorded in it.
func (s *ScoringService) DeleteRoom(ctx context.Context, token, roomRef string) error {
	room, err := s.adminRoom(ctx, token, roomRef)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRoom(ctx, room.ID); err != nil {
		return err
	}
	log.Printf("rooms: deleted room %d (%s)", room.ID, room.Code)
	return nil
}

// JoinRoom registers a participant. Rejoining with the same username keeps
// the identity, moves it to teamID and issues a fresh session token.
func (s *ScoringService) JoinRoom(ctx context.Context, roomRef, username string, teamID int64) (domain.User, error) {
	room, err := s.ResolveRoom(ctx, roomRef)
	if err != nil {
		return domain.User{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.ErrUsernameRequired
	}
	if _, err := s.store.Team(ctx, teamID); err != nil {
		return domain.User{}, err
	}
	return s.store.UpsertUser(ctx, domain.User{
		RoomID:       room.ID,
		Username:     username,
		TeamID:       teamID,
		SessionToken: uuid.NewString(),
		JoinedAt:     s.now(),
	})
}

// Teams lists the shared team catalog.
func (s *ScoringService) Teams(ctx context.Context) ([]domain.Team, error) {
	return s.store.Teams(ctx)
}

// Scoreboard aggregates team and user totals over the scored questions.
// Concurrent reads of the same room share one computation.
func (s *ScoringService) Scoreboard(ctx context.Context, roomRef string) (domain.Scoreboard, error) {
	room, err := s.ResolveRoom(ctx, roomRef)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	// A cancelled caller stops waiting but never cancels the shared build.
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(strconv.FormatInt(room.ID, 10), func() (interface{}, error) {
		return s.buildScoreboard(shared, room)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Scoreboard{}, ctx.Err()
	}
	if res.Err != nil {
		return domain.Scoreboard{}, res.Err
	}
	return res.Val.(domain.Scoreboard), nil
}

func (s *ScoringService) buildScoreboard(ctx context.Context, room domain.Room) (domain.Scoreboard, error) {
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	users, err := s.store.RoomUsers(ctx, room.ID)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	answers, err := s.store.ListAnswers(ctx, AnswerFilter{RoomID: room.ID})
	if err != nil {
		return domain.Scoreboard{}, err
	}

	teamScores := make(map[int64]*domain.TeamScore, len(teams))
	teamOrder := make([]int64, 0, len(teams))
	for _, t := range teams {
		teamScores[t.ID] = &domain.TeamScore{TeamID: t.ID, TeamName: t.Name, TeamColor: t.Color}
		teamOrder = append(teamOrder, t.ID)
	}
	userScores := make(map[int64]*domain.UserScore, len(users))
	userOrder := make([]int64, 0, len(users))
	for _, u := range users {
		userScores[u.ID] = &domain.UserScore{UserID: u.ID, Username: u.Username, TeamID: u.TeamID}
		userOrder = append(userOrder, u.ID)
	}

	for _, a := range answers {
		us := userScores[a.UserID]
		ts := teamScores[a.TeamID]
		if us != nil {
			us.AnswerCount++
		}
		if ts != nil {
			ts.AnswerCount++
		}
		if a.QuestionNumber == domain.PracticeQuestion {
			continue
		}
		correct := 0
		if a.Correctness == domain.Correct {
			correct = 1
		}
		if us != nil {
			us.TotalScore += a.Score
			us.CorrectCount += correct
		}
		if ts != nil {
			ts.TotalScore += a.Score
			ts.CorrectCount += correct
		}
	}

	board := domain.Scoreboard{RoomID: room.ID, UpdatedAt: s.now()}
	for _, id := range teamOrder {
		board.Teams = append(board.Teams, *teamScores[id])
	}
	for _, id := range userOrder {
		board.Users = append(board.Users, *userScores[id])
	}
	sort.SliceStable(board.Teams, func(i, j int) bool {
		if board.Teams[i].TotalScore != board.Teams[j].TotalScore {
			return board.Teams[i].TotalScore > board.Teams[j].TotalScore
		}
		return board.Teams[i].CorrectCount > board.Teams[j].CorrectCount
	})
	sort.SliceStable(board.Users, func(i, j int) bool {
		if board.Users[i].TotalScore != board.Users[j].TotalScore {
			return board.Users[i].TotalScore > board.Users[j].TotalScore
		}
		return board.Users[i].CorrectCount > board.Users[j].CorrectCount
	})
	return board, nil
}
