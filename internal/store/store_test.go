package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zwords/internal/grid"
)

func newTestGame(t *testing.T, m *Memory, code string) *Game {
	t.Helper()
	g := &Game{
		ID:          "game-" + code,
		Code:        code,
		OwnerPseudo: "alice",
		Theme:       "general",
		Difficulty:  "easy",
		Status:      "active",
		CreatedAt:   time.Now(),
	}
	if err := m.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return g
}

func TestGameLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "AB12")

	got, err := m.GameByCode(ctx, "AB12")
	if err != nil {
		t.Fatalf("GameByCode: %v", err)
	}
	if got.OwnerPseudo != "alice" || got.Status != "active" {
		t.Fatalf("unexpected game: %+v", got)
	}

	if err := m.CreateGame(ctx, &Game{ID: "other", Code: "AB12"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate code: want ErrConflict, got %v", err)
	}

	if err := m.SetCurrentGrid(ctx, g.ID, "grid-1"); err != nil {
		t.Fatalf("SetCurrentGrid: %v", err)
	}
	got, _ = m.GameByCode(ctx, "AB12")
	if got.CurrentGridID != "grid-1" {
		t.Fatalf("CurrentGridID = %q, want grid-1", got.CurrentGridID)
	}

	if err := m.DeleteGame(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if _, err := m.GameByCode(ctx, "AB12"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: want ErrNotFound, got %v", err)
	}
}

func TestGameByCodeIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	newTestGame(t, m, "XY9Z")

	if _, err := m.GameByCode(ctx, "xy9z"); err != nil {
		t.Fatalf("lowercase lookup: %v", err)
	}
}

func TestListActiveGamesCountsPlayers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "GAME")

	if _, err := m.UpsertPlayer(ctx, g.ID, "alice", "#FF0000"); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if _, err := m.UpsertPlayer(ctx, g.ID, "bob", "#00FF00"); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}

	list, err := m.ListActiveGames(ctx)
	if err != nil {
		t.Fatalf("ListActiveGames: %v", err)
	}
	if len(list) != 1 || list[0].PlayerCount != 2 {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestGridArchival(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "GRDS")

	gr := &Grid{
		ID:        "grid-1",
		GameID:    g.ID,
		Index:     1,
		Layout:    &grid.Layout{Size: 10},
		CreatedAt: time.Now(),
	}
	if err := m.SaveGrid(ctx, gr); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}

	done := time.Now()
	cells := map[string]string{"0-1": "A"}
	scores := []Score{{Pseudo: "alice", Color: "#FF0000", Score: 3}}
	if err := m.ArchiveGrid(ctx, "grid-1", cells, scores, done); err != nil {
		t.Fatalf("ArchiveGrid: %v", err)
	}

	completed, err := m.CompletedGrids(ctx, g.ID)
	if err != nil {
		t.Fatalf("CompletedGrids: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("completed grids = %d, want 1", len(completed))
	}
	got := completed[0]
	if got.CompletedAt == nil || got.FinalCells["0-1"] != "A" || len(got.FinalScores) != 1 {
		t.Fatalf("archival snapshot not recorded: %+v", got)
	}
}

func TestUpsertCellOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.UpsertCell(ctx, "grid-1", 2, 3, "a", "alice"); err != nil {
		t.Fatalf("UpsertCell: %v", err)
	}
	if err := m.UpsertCell(ctx, "grid-1", 2, 3, "B", "bob"); err != nil {
		t.Fatalf("UpsertCell: %v", err)
	}

	cells, err := m.Cells(ctx, "grid-1")
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if cells["2-3"] != "B" {
		t.Fatalf("cell 2-3 = %q, want B (last write, uppercased)", cells["2-3"])
	}
	if len(cells) != 1 {
		t.Fatalf("cells = %d, want 1", len(cells))
	}
}

func TestClaimEntryFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	won, err := m.ClaimEntry(ctx, "grid-1", "3-right", "alice")
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = m.ClaimEntry(ctx, "grid-1", "3-right", "bob")
	if err != nil || won {
		t.Fatalf("second claim: won=%v err=%v, want lost", won, err)
	}

	claimed, err := m.IsClaimed(ctx, "grid-1", "3-right")
	if err != nil || !claimed {
		t.Fatalf("IsClaimed: %v %v", claimed, err)
	}
	claims, _ := m.Claims(ctx, "grid-1")
	if len(claims) != 1 || claims[0].Pseudo != "alice" {
		t.Fatalf("claims = %+v, want single claim by alice", claims)
	}
}

func TestClaimEntryConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		pseudo := string(rune('a' + i%26))
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.ClaimEntry(ctx, "grid-1", "1-down", pseudo)
			if err != nil {
				t.Errorf("ClaimEntry: %v", err)
				return
			}
			if won {
				wins <- pseudo
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if n, _ := m.ClaimedCount(ctx, "grid-1"); n != 1 {
		t.Fatalf("ClaimedCount = %d, want 1", n)
	}
}

func TestPlayersSortedByScore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "SCRS")

	for _, p := range []string{"carol", "alice", "bob"} {
		if _, err := m.UpsertPlayer(ctx, g.ID, p, "#112233"); err != nil {
			t.Fatalf("UpsertPlayer(%s): %v", p, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := m.IncrementScore(ctx, g.ID, "bob"); err != nil {
			t.Fatalf("IncrementScore: %v", err)
		}
	}
	if err := m.IncrementScore(ctx, g.ID, "carol"); err != nil {
		t.Fatalf("IncrementScore: %v", err)
	}

	players, err := m.Players(ctx, g.ID)
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("players = %d, want 3", len(players))
	}
	if players[0].Pseudo != "bob" || players[1].Pseudo != "carol" || players[2].Pseudo != "alice" {
		t.Fatalf("order = %s,%s,%s; want bob,carol,alice",
			players[0].Pseudo, players[1].Pseudo, players[2].Pseudo)
	}
}

func TestUpsertPlayerKeepsScoreOnRejoin(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "KEEP")

	if _, err := m.UpsertPlayer(ctx, g.ID, "alice", "#FF0000"); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if err := m.IncrementScore(ctx, g.ID, "alice"); err != nil {
		t.Fatalf("IncrementScore: %v", err)
	}

	p, err := m.UpsertPlayer(ctx, g.ID, "alice", "#00FF00")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if p.Score != 1 {
		t.Fatalf("score after rejoin = %d, want 1", p.Score)
	}
	if p.Color != "#00FF00" {
		t.Fatalf("color after rejoin = %q, want updated", p.Color)
	}
}

func TestMessagesReturnsLastNChronological(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "CHAT")

	base := time.Now()
	for i := 0; i < 5; i++ {
		msg := &Message{
			ID:        string(rune('a' + i)),
			GameID:    g.ID,
			Type:      MsgChat,
			Pseudo:    "alice",
			Content:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	msgs, err := m.Messages(ctx, g.ID, 3)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].ID != "c" || msgs[2].ID != "e" {
		t.Fatalf("window = %s..%s, want c..e", msgs[0].ID, msgs[2].ID)
	}
}

func TestDeleteGameCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g := newTestGame(t, m, "CASC")

	gr := &Grid{ID: "grid-1", GameID: g.ID, Index: 1, Layout: &grid.Layout{Size: 8}, CreatedAt: time.Now()}
	if err := m.SaveGrid(ctx, gr); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	if _, err := m.UpsertPlayer(ctx, g.ID, "alice", "#FF0000"); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if _, err := m.ClaimEntry(ctx, "grid-1", "1-right", "alice"); err != nil {
		t.Fatalf("ClaimEntry: %v", err)
	}

	if err := m.DeleteGame(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if _, err := m.GridByID(ctx, "grid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("grid survived delete: %v", err)
	}
	if players, _ := m.Players(ctx, g.ID); len(players) != 0 {
		t.Fatalf("players survived delete: %+v", players)
	}
	if n, _ := m.ClaimedCount(ctx, "grid-1"); n != 0 {
		t.Fatalf("claims survived delete: %d", n)
	}
}
