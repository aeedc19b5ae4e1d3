package comicservice

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jm-archive/jm-downloader/internal/downloader"
	"github.com/jm-archive/jm-downloader/internal/expiry"
	"github.com/jm-archive/jm-downloader/internal/jmapi"
)

type fakeSession struct {
	comic      *jmapi.ComicData
	comicErr   error
	chapter    *jmapi.ChapterData
	chapterErr error
	scrambleID int64
}

func (f *fakeSession) GetComic(id int64) (*jmapi.ComicData, error)     { return f.comic, f.comicErr }
func (f *fakeSession) GetChapter(id int64) (*jmapi.ChapterData, error) { return f.chapter, f.chapterErr }
func (f *fakeSession) GetScrambleID(id int64) (int64, error)           { return f.scrambleID, nil }

type fakeDownloader struct {
	pages []downloader.Page
	err   error
}

func (f *fakeDownloader) DownloadChapter(comicID, chapterID, scrambleID int64, filenames []string) ([]downloader.Page, error) {
	return f.pages, f.err
}
func (f *fakeDownloader) ChapterDir(comicID, chapterID int64) string { return "/tmp/fake" }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGetInfoSingleVolume(t *testing.T) {
	sess := &fakeSession{
		comic:   &jmapi.ComicData{Name: "Foo", Author: []string{"a"}},
		chapter: &jmapi.ChapterData{Images: []string{"1.webp", "2.webp", "3.webp"}},
	}
	svc := New(sess, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())

	info, err := svc.GetInfo(500000)
	if err != nil {
		t.Fatalf("GetInfo() error = %v", err)
	}
	if info.ComicType != comicTypeSingleVolume {
		t.Errorf("ComicType = %q, want %q", info.ComicType, comicTypeSingleVolume)
	}
	if info.TotalPages == nil || *info.TotalPages != 3 {
		t.Errorf("TotalPages = %v, want 3", info.TotalPages)
	}
}

func TestGetInfoChapterBased(t *testing.T) {
	sess := &fakeSession{
		comic: &jmapi.ComicData{Name: "Bar", Series: []jmapi.Series{{ID: "11", Name: "c1"}, {ID: "12", Name: "c2"}}},
	}
	svc := New(sess, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())

	info, err := svc.GetInfo(1)
	if err != nil {
		t.Fatalf("GetInfo() error = %v", err)
	}
	if info.ComicType != comicTypeChapterBased {
		t.Errorf("ComicType = %q, want %q", info.ComicType, comicTypeChapterBased)
	}
	if info.TotalPages != nil {
		t.Errorf("TotalPages = %v, want nil for a chapter-based comic", info.TotalPages)
	}
}

func TestGetInfoNotFound(t *testing.T) {
	sess := &fakeSession{comicErr: errors.New("comic 999 not found")}
	svc := New(sess, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())
	if _, err := svc.GetInfo(999); err == nil {
		t.Fatal("GetInfo() should propagate the comic lookup error")
	}
}

func TestDownloadChapterRejectsEmptyList(t *testing.T) {
	svc := New(&fakeSession{}, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())
	if _, err := svc.DownloadChapter(1, nil, 600); err == nil {
		t.Fatal("DownloadChapter() with an empty chapter list should be BadRequest")
	}
}

func TestDownloadChapterRejectsBadExpiry(t *testing.T) {
	svc := New(&fakeSession{}, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())
	if _, err := svc.DownloadChapter(1, []int64{1}, -2); err == nil {
		t.Fatal("DownloadChapter() with expire_seconds < -1 should be BadRequest")
	}
}

func TestDownloadChapterMissingChapter(t *testing.T) {
	sess := &fakeSession{
		comic: &jmapi.ComicData{Name: "Bar", Series: []jmapi.Series{{ID: "11", Name: "c1"}}},
	}
	svc := New(sess, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())
	if _, err := svc.DownloadChapter(1, []int64{99}, 600); err == nil {
		t.Fatal("DownloadChapter() with an unknown chapter id should be NotFound")
	}
}

func TestDownloadChapterOrdersImagesByIndex(t *testing.T) {
	sess := &fakeSession{
		comic:      &jmapi.ComicData{Name: "Foo"},
		chapter:    &jmapi.ChapterData{Images: []string{"a", "b"}},
		scrambleID: 100000,
	}
	dl := &fakeDownloader{pages: []downloader.Page{
		{Index: 1, RelativePath: "b.png"},
		{Index: 0, RelativePath: "a.png"},
	}}
	svc := New(sess, dl, expiry.New(testLogger()), t.TempDir(), testLogger())

	data, err := svc.DownloadChapter(500000, []int64{500000}, 600)
	if err != nil {
		t.Fatalf("DownloadChapter() error = %v", err)
	}
	got := data.Chapters[0].Images
	if len(got) != 2 || got[0] != "a.png" || got[1] != "b.png" {
		t.Errorf("Images = %v, want [a.png b.png]", got)
	}
}

func TestDownloadComicRejectsChapterBased(t *testing.T) {
	sess := &fakeSession{comic: &jmapi.ComicData{Series: []jmapi.Series{{ID: "1", Name: "c1"}}}}
	svc := New(sess, &fakeDownloader{}, expiry.New(testLogger()), t.TempDir(), testLogger())
	if _, err := svc.DownloadComic(1, false, "", 600); err == nil {
		t.Fatal("DownloadComic() on a chapter-based comic should be BadRequest")
	}
}

func TestDownloadComicNoMergeReturnsImages(t *testing.T) {
	sess := &fakeSession{
		comic:   &jmapi.ComicData{Name: "Foo"},
		chapter: &jmapi.ChapterData{Images: []string{"a", "b"}},
	}
	dl := &fakeDownloader{pages: []downloader.Page{
		{Index: 0, RelativePath: "0001.png"},
		{Index: 1, RelativePath: "0002.png"},
	}}
	svc := New(sess, dl, expiry.New(testLogger()), t.TempDir(), testLogger())

	data, err := svc.DownloadComic(500000, false, "", 600)
	if err != nil {
		t.Fatalf("DownloadComic() error = %v", err)
	}
	if data.Images == nil || len(*data.Images) != 2 {
		t.Errorf("Images = %v, want 2 entries", data.Images)
	}
	if data.PDFPath != nil {
		t.Errorf("PDFPath should be omitted when merge=false, got %v", *data.PDFPath)
	}
}

func TestDownloadComicMergeCallsPDFPipeline(t *testing.T) {
	sess := &fakeSession{
		comic:   &jmapi.ComicData{Name: "Foo"},
		chapter: &jmapi.ChapterData{Images: []string{"a"}},
	}
	dl := &fakeDownloader{pages: []downloader.Page{{Index: 0, RelativePath: "0001.png", AbsolutePath: "/tmp/fake/0001.png"}}}
	svc := New(sess, dl, expiry.New(testLogger()), t.TempDir(), testLogger())

	var mergedPaths []string
	var mergedOut string
	var compressedPath, compressedPassword string
	svc.mergePDF = func(imagePaths []string, outputPath string) error {
		mergedPaths = imagePaths
		mergedOut = outputPath
		return nil
	}
	svc.compressPDF = func(pdfPath, password string) error {
		compressedPath = pdfPath
		compressedPassword = password
		return nil
	}
	svc.validatePageCount = func(pdfPath string, want int) error { return nil }

	data, err := svc.DownloadComic(500000, true, "  secret  ", 600)
	if err != nil {
		t.Fatalf("DownloadComic() error = %v", err)
	}
	if data.PDFPath == nil {
		t.Fatal("PDFPath should be set when merge=true")
	}
	if data.Images != nil {
		t.Error("Images should be omitted when merge=true")
	}
	if len(mergedPaths) != 1 || mergedPaths[0] != "/tmp/fake/0001.png" {
		t.Errorf("mergePDF called with %v", mergedPaths)
	}
	if mergedOut != compressedPath {
		t.Errorf("compressPDF should run on the file mergePDF just wrote: %q != %q", compressedPath, mergedOut)
	}
	if compressedPassword != "secret" {
		t.Errorf("encrypt password should be trimmed, got %q", compressedPassword)
	}
}
