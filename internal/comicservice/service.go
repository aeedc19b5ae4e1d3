// Package comicservice is the request façade of spec.md §4.H: the three
// public operations consumed by the HTTP layer, with all of §4.H's
// validation rules. Grounded on original_source/src/handlers.rs's
// get_comic_info/download_chapter/download_comic, translated from Rocket
// request handlers into plain Go methods the HTTP layer calls into.
package comicservice

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jm-archive/jm-downloader/internal/apperr"
	"github.com/jm-archive/jm-downloader/internal/downloader"
	"github.com/jm-archive/jm-downloader/internal/expiry"
	"github.com/jm-archive/jm-downloader/internal/jmapi"
	"github.com/jm-archive/jm-downloader/internal/pdfmerge"
)

// sessionClient is the subset of *session.Manager the service depends on.
type sessionClient interface {
	GetComic(id int64) (*jmapi.ComicData, error)
	GetChapter(id int64) (*jmapi.ChapterData, error)
	GetScrambleID(id int64) (int64, error)
}

// pageDownloader is the subset of *downloader.Orchestrator the service
// depends on.
type pageDownloader interface {
	DownloadChapter(comicID, chapterID, scrambleID int64, filenames []string) ([]downloader.Page, error)
	ChapterDir(comicID, chapterID int64) string
}

// Service is the façade the HTTP layer drives.
type Service struct {
	session      sessionClient
	downloader   pageDownloader
	expiry       *expiry.Scheduler
	downloadRoot string
	logger       *slog.Logger

	mergePDF          func(imagePaths []string, outputPath string) error
	compressPDF       func(pdfPath, password string) error
	validatePageCount func(pdfPath string, want int) error
}

func New(session sessionClient, dl pageDownloader, exp *expiry.Scheduler, downloadRoot string, logger *slog.Logger) *Service {
	return &Service{
		session:           session,
		downloader:        dl,
		expiry:            exp,
		downloadRoot:      downloadRoot,
		logger:            logger,
		mergePDF:          pdfmerge.Merge,
		compressPDF:       pdfmerge.Compress,
		validatePageCount: pdfmerge.ValidatePageCount,
	}
}

// GetInfo implements spec.md §4.H's getInfo operation.
func (s *Service) GetInfo(comicID int64) (*ComicInfo, error) {
	comic, err := s.session.GetComic(comicID)
	if err != nil {
		return nil, err
	}

	comicType := comicTypeChapterBased
	if len(comic.Series) == 0 {
		comicType = comicTypeSingleVolume
	}

	info := &ComicInfo{
		ComicID:     comicID,
		Title:       comic.Name,
		ComicType:   comicType,
		Authors:     comic.Author,
		Description: comic.Description,
	}
	if comic.TotalViews != "" {
		info.TotalViews = &comic.TotalViews
	}
	if comic.Likes != "" {
		info.Likes = &comic.Likes
	}

	if len(comic.Series) == 0 {
		chapter, err := s.session.GetChapter(comicID)
		if err != nil {
			return nil, err
		}
		n := len(chapter.Images)
		info.TotalPages = &n
	}

	return info, nil
}

// DownloadChapter implements spec.md §4.H's downloadChapter operation.
func (s *Service) DownloadChapter(comicID int64, chapterIDs []int64, expireSeconds int64) (*ChapterDownloadData, error) {
	if len(chapterIDs) == 0 {
		return nil, apperr.BadRequestf("chapter id list must not be empty")
	}
	if expireSeconds < -1 {
		return nil, apperr.BadRequestf("expire_seconds must be -1 or non-negative")
	}

	comic, err := s.session.GetComic(comicID)
	if err != nil {
		return nil, err
	}

	data := &ChapterDownloadData{ComicID: comicID, ComicTitle: comic.Name}

	for _, chapterID := range chapterIDs {
		chapterName, err := resolveChapterName(comic, comicID, chapterID)
		if err != nil {
			return nil, err
		}

		chapter, err := s.session.GetChapter(chapterID)
		if err != nil {
			return nil, err
		}
		scrambleID, err := s.session.GetScrambleID(chapterID)
		if err != nil {
			return nil, err
		}

		pages, err := s.downloader.DownloadChapter(comicID, chapterID, scrambleID, chapter.Images)
		if err != nil {
			return nil, err
		}

		images := make([]string, len(pages))
		for _, p := range pages {
			images[p.Index] = p.RelativePath
		}

		data.Chapters = append(data.Chapters, SingleChapterData{
			ChapterID:    chapterID,
			ChapterTitle: chapterName,
			Images:       images,
		})

		s.expiry.Schedule(s.downloader.ChapterDir(comicID, chapterID), expireSeconds)
	}

	return data, nil
}

func resolveChapterName(comic *jmapi.ComicData, comicID, chapterID int64) (string, error) {
	if len(comic.Series) == 0 {
		if chapterID != comicID {
			return "", apperr.NotFoundf("chapter %d does not exist; this comic is single-volume and its chapter id must equal its comic id %d", chapterID, comicID)
		}
		return "第1话", nil
	}

	for _, series := range comic.Series {
		if id, err := strconv.ParseInt(series.ID, 10, 64); err == nil && id == chapterID {
			return series.Name, nil
		}
	}
	return "", apperr.NotFoundf("chapter %d does not exist", chapterID)
}

// DownloadComic implements spec.md §4.H's downloadComic operation.
func (s *Service) DownloadComic(comicID int64, merge bool, encrypt string, expireSeconds int64) (*ComicDownloadData, error) {
	if expireSeconds < -1 {
		return nil, apperr.BadRequestf("expire_seconds must be -1 or non-negative")
	}
	password := strings.TrimSpace(encrypt)

	comic, err := s.session.GetComic(comicID)
	if err != nil {
		return nil, err
	}
	if len(comic.Series) != 0 {
		return nil, apperr.BadRequestf("comic %d is chapter-based; use downloadChapter instead", comicID)
	}

	chapterID := comicID
	chapterDir := s.downloader.ChapterDir(comicID, chapterID)
	const pdfFilename = "merged.pdf"
	pdfPath := filepath.Join(chapterDir, pdfFilename)
	pdfRelative := fmt.Sprintf("download/%d/%d/%s", comicID, chapterID, pdfFilename)

	if merge {
		if _, err := os.Stat(pdfPath); err == nil {
			s.expiry.Schedule(chapterDir, expireSeconds)
			return &ComicDownloadData{ComicID: comicID, ComicTitle: comic.Name, PDFPath: &pdfRelative}, nil
		}
	}

	chapter, err := s.session.GetChapter(chapterID)
	if err != nil {
		return nil, err
	}
	scrambleID, err := s.session.GetScrambleID(chapterID)
	if err != nil {
		return nil, err
	}

	pages, err := s.downloader.DownloadChapter(comicID, chapterID, scrambleID, chapter.Images)
	if err != nil {
		return nil, err
	}

	images := make([]string, len(pages))
	absolutePaths := make([]string, len(pages))
	for _, p := range pages {
		images[p.Index] = p.RelativePath
		absolutePaths[p.Index] = p.AbsolutePath
	}

	result := &ComicDownloadData{ComicID: comicID, ComicTitle: comic.Name}

	if merge {
		if err := s.mergePDF(absolutePaths, pdfPath); err != nil {
			return nil, err
		}
		if err := s.compressPDF(pdfPath, password); err != nil {
			return nil, err
		}
		if err := s.validatePageCount(pdfPath, len(absolutePaths)); err != nil {
			return nil, err
		}
		result.PDFPath = &pdfRelative
	} else {
		result.Images = &images
	}

	s.expiry.Schedule(chapterDir, expireSeconds)
	return result, nil
}
