package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/auth"
	"teamquiz-service/internal/config"
	"teamquiz-service/internal/infra/memory"
)

const testSecret = "transport-test-secret-0123456789"

type fixture struct {
	server *httptest.Server
	admin  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	if err := store.SeedTeams(context.Background(), config.DefaultTeams()); err != nil {
		t.Fatalf("seed teams: %v", err)
	}
	hub := memory.NewHub(16)
	service := app.NewScoringService(store, hub, auth.NewJWTAuthenticator(testSecret, store), app.Options{})
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, hub)))
	t.Cleanup(server.Close)

	admin, err := auth.IssueAdminToken(testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return &fixture{server: server, admin: admin}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type roomResp struct {
	ID   int64  `json:"id"`
	Code string `json:"room_code"`
}

type userResp struct {
	ID           int64  `json:"id"`
	SessionToken string `json:"session_token"`
}

type answerResp struct {
	ID        int64  `json:"id"`
	Score     int    `json:"score"`
	IsCorrect *bool  `json:"is_correct"`
	Elapsed   *int64 `json:"elapsed_time_ms"`
}

func (f *fixture) setupRoom(t *testing.T) (roomResp, userResp, userResp) {
	t.Helper()
	var room roomResp
	if code := f.do(t, http.MethodPost, "/api/rooms", f.admin, map[string]any{"room_code": "QUIZ1"}, &room); code != http.StatusCreated {
		t.Fatalf("create room: status %d", code)
	}
	var alice, bob userResp
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/join", "", map[string]any{"username": "alice", "team_id": 1}, &alice); code != http.StatusCreated {
		t.Fatalf("join alice: status %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/join", "", map[string]any{"username": "bob", "team_id": 2}, &bob); code != http.StatusCreated {
		t.Fatalf("join bob: status %d", code)
	}
	if code := f.do(t, http.MethodPatch, "/api/rooms/QUIZ1/questions/1", f.admin, map[string]any{"correct_answer": "Tokyo"}, nil); code != http.StatusOK {
		t.Fatalf("set expected answer: status %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/questions/1/start", f.admin, nil, nil); code != http.StatusOK {
		t.Fatalf("start question: status %d", code)
	}
	return room, alice, bob
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	if code := f.do(t, http.MethodPost, "/api/rooms", "", map[string]any{}, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms", "not-an-admin", map[string]any{}, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}
}

func TestSubmitJudgeAndFinalizeFlow(t *testing.T) {
	f := newFixture(t)
	_, alice, bob := f.setupRoom(t)

	var first, second answerResp
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", alice.SessionToken, map[string]any{"question_number": 1, "answer_text": " tokyo "}, &first); code != http.StatusCreated {
		t.Fatalf("submit alice: status %d", code)
	}
	if first.IsCorrect == nil || !*first.IsCorrect || first.Elapsed == nil {
		t.Fatalf("expected judged and timed answer, got %+v", first)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", alice.SessionToken, map[string]any{"question_number": 1, "answer_text": "Tokyo"}, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on same-day resubmission, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", bob.SessionToken, map[string]any{"question_number": 1, "answer_text": "Kyoto"}, &second); code != http.StatusCreated {
		t.Fatalf("submit bob: status %d", code)
	}
	if second.IsCorrect == nil || *second.IsCorrect {
		t.Fatalf("expected bob judged incorrect, got %+v", second)
	}

	var judged answerResp
	path := fmt.Sprintf("/api/rooms/QUIZ1/answers/%d", second.ID)
	if code := f.do(t, http.MethodPatch, path, f.admin, map[string]any{"is_correct": true}, &judged); code != http.StatusOK {
		t.Fatalf("judge bob: status %d", code)
	}
	if judged.Score != 7 {
		t.Fatalf("expected bob to rank second with 7 points, got %d", judged.Score)
	}

	var result struct {
		Count int `json:"correct_answers_count"`
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/questions/1/finalize", f.admin, nil, &result); code != http.StatusOK {
		t.Fatalf("finalize: status %d", code)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 ranked answers, got %d", result.Count)
	}

	var board struct {
		Teams []struct {
			TeamID     int64 `json:"team_id"`
			TotalScore int   `json:"total_score"`
		} `json:"team_scores"`
	}
	if code := f.do(t, http.MethodGet, "/api/rooms/QUIZ1/scores", "", nil, &board); code != http.StatusOK {
		t.Fatalf("scores: status %d", code)
	}
	if len(board.Teams) == 0 || board.Teams[0].TeamID != 1 || board.Teams[0].TotalScore != 10 {
		t.Fatalf("expected team 1 leading with 10, got %+v", board.Teams)
	}
}

func TestFinalizeReportsUnjudgedCount(t *testing.T) {
	f := newFixture(t)
	_, alice, _ := f.setupRoom(t)

	if code := f.do(t, http.MethodPatch, "/api/rooms/QUIZ1/questions/1", f.admin, map[string]any{"correct_answer": nil}, nil); code != http.StatusOK {
		t.Fatalf("clear expected answer: status %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", alice.SessionToken, map[string]any{"question_number": 1, "answer_text": "Tokyo"}, nil); code != http.StatusCreated {
		t.Fatalf("submit: status %d", code)
	}

	var resp struct {
		Error         string `json:"error"`
		UnjudgedCount *int   `json:"unjudged_count"`
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/questions/1/finalize", f.admin, nil, &resp); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if resp.UnjudgedCount == nil || *resp.UnjudgedCount != 1 {
		t.Fatalf("expected unjudged_count 1, got %+v", resp)
	}
}

func TestRoomPatchDeleteAndOwnAnswers(t *testing.T) {
	f := newFixture(t)
	_, alice, bob := f.setupRoom(t)

	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", alice.SessionToken, map[string]any{"question_number": 1, "answer_text": "Tokyo"}, nil); code != http.StatusCreated {
		t.Fatalf("submit alice: status %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", bob.SessionToken, map[string]any{"question_number": 1, "answer_text": "Tokyo"}, nil); code != http.StatusCreated {
		t.Fatalf("submit bob: status %d", code)
	}

	var mine []answerResp
	if code := f.do(t, http.MethodGet, "/api/rooms/QUIZ1/answers/my", alice.SessionToken, nil, &mine); code != http.StatusOK {
		t.Fatalf("my answers: status %d", code)
	}
	if len(mine) != 1 {
		t.Fatalf("expected one own answer, got %d", len(mine))
	}

	var room struct {
		ScoreTable []int `json:"score_table"`
		IsActive   bool  `json:"is_active"`
	}
	if code := f.do(t, http.MethodPatch, "/api/rooms/QUIZ1", f.admin, map[string]any{"score_table": []int{20, 15}, "is_active": false}, &room); code != http.StatusOK {
		t.Fatalf("patch room: status %d", code)
	}
	if len(room.ScoreTable) != 2 || room.ScoreTable[0] != 20 || room.IsActive {
		t.Fatalf("unexpected room %+v", room)
	}
	if code := f.do(t, http.MethodPatch, "/api/rooms/QUIZ1", f.admin, map[string]any{"score_table": []int{-1}}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative table, got %d", code)
	}

	var result struct {
		Count int `json:"correct_answers_count"`
	}
	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/questions/1/finalize", f.admin, nil, &result); code != http.StatusOK {
		t.Fatalf("finalize: status %d", code)
	}
	if code := f.do(t, http.MethodGet, "/api/rooms/QUIZ1/answers/my", alice.SessionToken, nil, &mine); code != http.StatusOK || mine[0].Score != 20 {
		t.Fatalf("expected alice scored 20 under the new table, got status %d %+v", code, mine)
	}

	if code := f.do(t, http.MethodDelete, "/api/rooms/QUIZ1", alice.SessionToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for participant delete, got %d", code)
	}
	if code := f.do(t, http.MethodDelete, "/api/rooms/QUIZ1", f.admin, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete room: status %d", code)
	}
	if code := f.do(t, http.MethodGet, "/api/rooms/QUIZ1/scores", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestUnknownRoomIsNotFound(t *testing.T) {
	f := newFixture(t)
	if code := f.do(t, http.MethodGet, "/api/rooms/NOPE/scores", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestWebSocketStreamsRoomEvents(t *testing.T) {
	f := newFixture(t)
	room, alice, _ := f.setupRoom(t)

	u := "ws" + f.server.URL[len("http"):] + fmt.Sprintf("/ws?roomId=%d", room.ID)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "scoreboard")

	if code := f.do(t, http.MethodPost, "/api/rooms/QUIZ1/answers", alice.SessionToken, map[string]any{"question_number": 1, "answer_text": "Tokyo"}, nil); code != http.StatusCreated {
		t.Fatalf("submit: status %d", code)
	}
	_, payload := readNext(conn, t, "answer-submitted")
	if ids, ok := payload["answerIds"].([]any); !ok || len(ids) != 1 {
		t.Fatalf("expected one answer id, got %+v", payload)
	}
}

func TestWebSocketRejectsUnknownRoom(t *testing.T) {
	f := newFixture(t)
	u := "ws" + f.server.URL[len("http"):] + "/ws?roomId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
