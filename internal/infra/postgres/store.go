package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store persists rooms, participants, questions and answers with bun.
// Question transactions lock the question row with SELECT ... FOR UPDATE.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func (s *Store) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	var row roomRow
	if err := s.db.NewSelect().Model(&row).Where("room_code = ?", code).Scan(ctx); err != nil {
		return domain.Room{}, notFound(err, domain.ErrRoomNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) RoomByID(ctx context.Context, id int64) (domain.Room, error) {
	var row roomRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Room{}, notFound(err, domain.ErrRoomNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	row := roomRow{
		Code:              room.Code,
		IsActive:          room.IsActive,
		TotalQuestions:    room.TotalQuestions,
		AllowResubmission: room.AllowResubmission,
		ScoreTable:        append([]int{}, room.ScoreTable...),
		CreatedAt:         room.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Room{}, domain.ErrRoomCodeTaken
		}
		return domain.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	row := roomRow{
		ID:                room.ID,
		IsActive:          room.IsActive,
		AllowResubmission: room.AllowResubmission,
		ScoreTable:        append([]int{}, room.ScoreTable...),
	}
	res, err := s.db.NewUpdate().Model(&row).
		Column("is_active", "allow_resubmission", "score_table").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Room{}, fmt.Errorf("update room: %w", err)
	}
	if err := requireRowOr(res, domain.ErrRoomNotFound); err != nil {
		return domain.Room{}, err
	}
	return s.RoomByID(ctx, room.ID)
}

// DeleteRoom relies on ON DELETE CASCADE for users, questions, team starts
// and answers.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*roomRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return requireRowOr(res, domain.ErrRoomNotFound)
}

func (s *Store) Teams(ctx context.Context) ([]domain.Team, error) {
	var rows []teamRow
	if err := s.db.NewSelect().Model(&rows).Order("display_order ASC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Team, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) Team(ctx context.Context, id int64) (domain.Team, error) {
	var row teamRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Team{}, notFound(err, domain.ErrTeamNotFound)
	}
	return row.toDomain(), nil
}

// SeedTeams upserts the catalog by team id.
func (s *Store) SeedTeams(ctx context.Context, teams []domain.Team) error {
	if len(teams) == 0 {
		return nil
	}
	rows := make([]teamRow, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, teamRow{ID: t.ID, Name: t.Name, Color: t.Color, DisplayOrder: t.DisplayOrder})
	}
	_, err := s.db.NewInsert().Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("color = EXCLUDED.color").
		Set("display_order = EXCLUDED.display_order").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed teams: %w", err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now()
	}
	row := userRow{
		RoomID:       user.RoomID,
		Username:     user.Username,
		TeamID:       user.TeamID,
		SessionToken: user.SessionToken,
		JoinedAt:     user.JoinedAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (room_id, username) DO UPDATE").
		Set("team_id = EXCLUDED.team_id").
		Set("session_token = EXCLUDED.session_token").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UserByToken(ctx context.Context, roomID int64, token string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).
		Where("room_id = ?", roomID).
		Where("session_token = ?", token).
		Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) RoomUsers(ctx context.Context, roomID int64) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("room_id = ?", roomID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) EnsureQuestion(ctx context.Context, roomID int64, number int) (domain.Question, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (room_id, question_number, answer_type) VALUES (?, ?, ?)
		ON CONFLICT (room_id, question_number) DO NOTHING`,
		roomID, number, string(domain.FreeText))
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == foreignKeyViolation {
			return domain.Question{}, domain.ErrRoomNotFound
		}
		return domain.Question{}, fmt.Errorf("ensure question: %w", err)
	}
	return s.Question(ctx, roomID, number)
}

func (s *Store) Question(ctx context.Context, roomID int64, number int) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).
		Where("room_id = ?", roomID).
		Where("question_number = ?", number).
		Scan(ctx)
	if err != nil {
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) Answer(ctx context.Context, roomID, answerID int64) (domain.Answer, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).
		Where("id = ?", answerID).
		Where("room_id = ?", roomID).
		Scan(ctx)
	if err != nil {
		return domain.Answer{}, notFound(err, domain.ErrAnswerNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAnswers(ctx context.Context, filter app.AnswerFilter) ([]domain.Answer, error) {
	var rows []answerRow
	q := s.db.NewSelect().Model(&rows).Where("room_id = ?", filter.RoomID)
	if filter.QuestionNumber != nil {
		q = q.Where("question_number = ?", *filter.QuestionNumber)
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return answersToDomain(rows), nil
}

// InQuestionTx locks the question row for the duration of fn.
func (s *Store) InQuestionTx(ctx context.Context, roomID int64, number int, fn func(ctx context.Context, tx app.QuestionTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row questionRow
		err := tx.NewSelect().Model(&row).
			Where("room_id = ?", roomID).
			Where("question_number = ?", number).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return notFound(err, domain.ErrQuestionNotFound)
		}
		return fn(ctx, &questionTx{tx: tx, question: row.toDomain()})
	})
}

type questionTx struct {
	tx       bun.Tx
	question domain.Question
}

func (t *questionTx) Question() domain.Question {
	return t.question
}

func (t *questionTx) SaveQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	q.ID = t.question.ID
	q.RoomID = t.question.RoomID
	q.Number = t.question.Number
	row := questionRowFrom(q)
	_, err := t.tx.NewUpdate().Model(&row).
		Column("answer_type", "choices", "correct_answer", "allow_resubmission",
			"global_start_time", "is_finalized", "finalized_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Question{}, fmt.Errorf("save question: %w", err)
	}
	t.question = q
	return q, nil
}

func (t *questionTx) TeamStarts(ctx context.Context) (map[int64]time.Time, error) {
	var rows []teamStartRow
	if err := t.tx.NewSelect().Model(&rows).Where("question_id = ?", t.question.ID).Scan(ctx); err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(rows))
	for _, r := range rows {
		out[r.TeamID] = r.StartTime
	}
	return out, nil
}

func (t *questionTx) CreateTeamStart(ctx context.Context, teamID int64, at time.Time) (domain.QuestionTeamStart, error) {
	exists, err := t.tx.NewSelect().Model((*teamStartRow)(nil)).
		Where("question_id = ?", t.question.ID).
		Where("team_id = ?", teamID).
		Exists(ctx)
	if err != nil {
		return domain.QuestionTeamStart{}, err
	}
	if exists {
		return domain.QuestionTeamStart{}, domain.ErrTeamStartExists
	}
	row := teamStartRow{QuestionID: t.question.ID, TeamID: teamID, StartTime: at}
	if _, err := t.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.QuestionTeamStart{}, domain.ErrTeamStartExists
		}
		return domain.QuestionTeamStart{}, fmt.Errorf("insert team start: %w", err)
	}
	return domain.QuestionTeamStart{ID: row.ID, QuestionID: row.QuestionID, TeamID: row.TeamID, StartTime: row.StartTime}, nil
}

func (t *questionTx) SubmittedOn(ctx context.Context, userID int64, day domain.Day) (bool, error) {
	return t.tx.NewSelect().Model((*answerRow)(nil)).
		Where("room_id = ?", t.question.RoomID).
		Where("question_number = ?", t.question.Number).
		Where("user_id = ?", userID).
		Where("submission_date = ?", string(day)).
		Exists(ctx)
}

func (t *questionTx) InsertAnswer(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	row := answerRowFrom(a)
	if _, err := t.tx.NewInsert().Model(&row).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	a.ID = row.ID
	return a, nil
}

func (t *questionTx) Answers(ctx context.Context) ([]domain.Answer, error) {
	var rows []answerRow
	err := t.tx.NewSelect().Model(&rows).
		Where("room_id = ?", t.question.RoomID).
		Where("question_number = ?", t.question.Number).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return answersToDomain(rows), nil
}

func (t *questionTx) UpdateAnswer(ctx context.Context, a domain.Answer) error {
	row := answerRowFrom(a)
	res, err := t.tx.NewUpdate().Model(&row).
		Column("answer_text", "selected_choice", "elapsed_time_ms", "is_correct", "score").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	return requireRow(res)
}

func (t *questionTx) DeleteAnswer(ctx context.Context, answerID int64) error {
	res, err := t.tx.NewDelete().Model((*answerRow)(nil)).
		Where("id = ?", answerID).
		Where("room_id = ?", t.question.RoomID).
		Where("question_number = ?", t.question.Number).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return requireRow(res)
}

// SaveScores writes every score and elapsed time in one UPDATE ... FROM (VALUES ...).
func (t *questionTx) SaveScores(ctx context.Context, answers []domain.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([]answerRow, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, answerRow{ID: a.ID, Score: a.Score, ElapsedMS: a.ElapsedMS})
	}
	values := t.tx.NewValues(&rows).Column("id", "score", "elapsed_time_ms")
	res, err := t.tx.NewUpdate().
		With("_data", values).
		Model((*answerRow)(nil)).
		TableExpr("_data").
		Set("score = _data.score::integer").
		Set("elapsed_time_ms = _data.elapsed_time_ms::bigint").
		Where("a.id = _data.id::bigint").
		Where("a.room_id = ?", t.question.RoomID).
		Where("a.question_number = ?", t.question.Number).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(rows)) {
		return domain.ErrAnswerNotFound
	}
	return nil
}

func requireRow(res sql.Result) error {
	return requireRowOr(res, domain.ErrAnswerNotFound)
}

func requireRowOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
