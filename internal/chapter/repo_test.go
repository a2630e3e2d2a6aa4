package chapter

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"novelhub/internal/markup"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// one connection, or each pooled conn would see its own empty memory db
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.MigrateFrom(db, "../../docs/schema.sql"); err != nil {
		t.Fatal(err)
	}
	return NewRepo(db, markup.NewFormatter(markup.Config{}), nil)
}

func createWork(t *testing.T, r *Repo, typ models.WorkType) string {
	t.Helper()
	id := uuid.NewString()
	_, err := r.DB.Exec(`INSERT INTO works (id, title, author, type) VALUES (?, ?, ?, ?)`,
		id, "Test Work", "Author", string(typ))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func contentRowCount(t *testing.T, r *Repo, chapterID string) int {
	t.Helper()
	var n int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM chapter_contents WHERE chapter_id = ?`, chapterID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func contentRowID(t *testing.T, r *Repo, chapterID string) string {
	t.Helper()
	var id string
	if err := r.DB.QueryRow(`SELECT id FROM chapter_contents WHERE chapter_id = ?`, chapterID).Scan(&id); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestCreateProseChapterFormatsContent(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>hello</p>"})
	if err != nil {
		t.Fatal(err)
	}
	if ch.ID == "" {
		t.Fatal("chapter id not assigned")
	}

	got, err := r.GetByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Content, "ql-font-merriweather") || !strings.Contains(got.Content, "ql-size-large") {
		t.Fatalf("content not formatted: %q", got.Content)
	}
	if got.ContentLength != len(got.Content) {
		t.Fatalf("content length %d does not match content %d", got.ContentLength, len(got.Content))
	}
	if n := contentRowCount(t, r, ch.ID); n != 1 {
		t.Fatalf("expected 1 content row, got %d", n)
	}
}

func TestCreateIllustratedChapterStoresVerbatim(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeIllustrated)

	raw := `<img src="/content-images/page1.png">`
	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: raw}); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != raw {
		t.Fatalf("illustrated content altered: %q", got.Content)
	}
}

func TestCreateWithoutContent(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, nil); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "" || got.ContentLength != 0 {
		t.Fatalf("expected empty content, got %q (%d)", got.Content, got.ContentLength)
	}
	if n := contentRowCount(t, r, ch.ID); n != 0 {
		t.Fatalf("expected 0 content rows, got %d", n)
	}
}

func TestCreateUnknownWork(t *testing.T) {
	r := newTestRepo(t)
	ch := &models.Chapter{WorkID: "missing", Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, nil); !errors.Is(err, ErrWorkNotFound) {
		t.Fatalf("err = %v, want ErrWorkNotFound", err)
	}
}

func TestUpdateReplacesContentRow(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>first</p>"}); err != nil {
		t.Fatal(err)
	}
	oldRowID := contentRowID(t, r, ch.ID)

	second := "<p>second</p>"
	got, err := r.Update(context.Background(), ch.ID, Update{Content: &second})
	if err != nil {
		t.Fatal(err)
	}
	if n := contentRowCount(t, r, ch.ID); n != 1 {
		t.Fatalf("expected exactly 1 content row after replace, got %d", n)
	}
	if newRowID := contentRowID(t, r, ch.ID); newRowID == oldRowID {
		t.Fatal("content row id unchanged after replace")
	}
	if !strings.Contains(got.Content, "second") || strings.Contains(got.Content, "first") {
		t.Fatalf("content not replaced: %q", got.Content)
	}
}

func TestUpdateRepeatedReplaceKeepsSingleRow(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>v0</p>"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		body := "<p>revision</p>"
		if _, err := r.Update(context.Background(), ch.ID, Update{Content: &body}); err != nil {
			t.Fatal(err)
		}
		if n := contentRowCount(t, r, ch.ID); n != 1 {
			t.Fatalf("iteration %d: expected 1 content row, got %d", i, n)
		}
	}
}

func TestUpdateMetadataLeavesContentAlone(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>keep me</p>"}); err != nil {
		t.Fatal(err)
	}
	before, _ := r.GetByID(context.Background(), ch.ID)
	rowID := contentRowID(t, r, ch.ID)

	title := "Renamed"
	locked := true
	got, err := r.Update(context.Background(), ch.ID, Update{Title: &title, Locked: &locked})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" || !got.Locked {
		t.Fatalf("metadata not updated: %+v", got)
	}
	if got.Content != before.Content {
		t.Fatalf("content changed by metadata update: %q", got.Content)
	}
	if contentRowID(t, r, ch.ID) != rowID {
		t.Fatal("content row replaced by metadata update")
	}
}

func TestUpdateForcesExplicitTypography(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>text</p>"}); err != nil {
		t.Fatal(err)
	}

	body := `<p class="ql-font-merriweather ql-size-large">text</p>`
	font := "lora"
	got, err := r.Update(context.Background(), ch.ID, Update{Content: &body, FontFamily: &font})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Content, "ql-font-lora") {
		t.Fatalf("explicit font not applied: %q", got.Content)
	}
	if strings.Contains(got.Content, "ql-font-merriweather") {
		t.Fatalf("old font class survived forced override: %q", got.Content)
	}
}

func TestUpdateReleaseDate(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, nil); err != nil {
		t.Fatal(err)
	}

	date := "2026-01-15"
	got, err := r.Update(context.Background(), ch.ID, Update{ReleaseDate: &date})
	if err != nil {
		t.Fatal(err)
	}
	if got.ReleaseDate == nil || got.ReleaseDate.Format("2006-01-02") != date {
		t.Fatalf("release date not set: %+v", got.ReleaseDate)
	}

	clear := ""
	got, err = r.Update(context.Background(), ch.ID, Update{ReleaseDate: &clear})
	if err != nil {
		t.Fatal(err)
	}
	if got.ReleaseDate != nil {
		t.Fatalf("release date not cleared: %+v", got.ReleaseDate)
	}

	garbage := "not-a-date"
	if _, err := r.Update(context.Background(), ch.ID, Update{ReleaseDate: &garbage}); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	r := newTestRepo(t)
	title := "x"
	if _, err := r.Update(context.Background(), "missing", Update{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesChapterAndContent(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, &ContentInput{Content: "<p>x</p>"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(context.Background(), ch.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetByID(context.Background(), ch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := contentRowCount(t, r, ch.ID); n != 0 {
		t.Fatalf("content rows orphaned: %d", n)
	}
}

func TestDeleteNotFound(t *testing.T) {
	r := newTestRepo(t)
	if err := r.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByWorkAndNumber(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	for n := 1; n <= 3; n++ {
		ch := &models.Chapter{WorkID: workID, Number: n, Title: "Ch"}
		if err := r.Create(context.Background(), ch, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.GetByWorkAndNumber(context.Background(), workID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != 2 {
		t.Fatalf("got chapter %d", got.Number)
	}
	if _, err := r.GetByWorkAndNumber(context.Background(), workID, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListByWorkOrdersByNumber(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	for _, n := range []int{3, 1, 2} {
		ch := &models.Chapter{WorkID: workID, Number: n, Title: "Ch"}
		if err := r.Create(context.Background(), ch, nil); err != nil {
			t.Fatal(err)
		}
	}

	list, err := r.ListByWork(context.Background(), workID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(list))
	}
	for i, ch := range list {
		if ch.Number != i+1 {
			t.Fatalf("position %d holds chapter %d", i, ch.Number)
		}
	}
}

func TestIncrementViews(t *testing.T) {
	r := newTestRepo(t)
	workID := createWork(t, r, models.WorkTypeProse)

	ch := &models.Chapter{WorkID: workID, Number: 1, Title: "One"}
	if err := r.Create(context.Background(), ch, nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := r.IncrementViews(context.Background(), ch.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.GetByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 3 {
		t.Fatalf("views = %d, want 3", got.Views)
	}
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
		isNil  bool
	}{
		{"", true, true},
		{"null", true, true},
		{"NULL", true, true},
		{"2026-01-15", true, false},
		{"2026-01-15T10:30:00Z", true, false},
		{"garbage", false, true},
		{"15/01/2026", false, true},
	}
	for _, tt := range tests {
		got, ok := ParseReleaseDate(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseReleaseDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if (got == nil) != tt.isNil {
			t.Errorf("ParseReleaseDate(%q) = %v", tt.in, got)
		}
	}
	got, ok := ParseReleaseDate("2026-01-15")
	if !ok || got == nil {
		t.Fatal("expected parsed date")
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
