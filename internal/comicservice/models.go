package comicservice

// ComicInfo is the response shape of GetInfo, matching spec.md §4.H and
// original_source/src/models.rs's ComicInfo.
type ComicInfo struct {
	ComicID     int64    `json:"comic_id"`
	Title       string   `json:"title"`
	ComicType   string   `json:"comic_type"`
	TotalViews  *string  `json:"total_views,omitempty"`
	Likes       *string  `json:"likes,omitempty"`
	Authors     []string `json:"authors"`
	Description string   `json:"description"`
	TotalPages  *int     `json:"total_pages,omitempty"`
}

// SingleChapterData is one chapter's entry in a DownloadChapter response.
type SingleChapterData struct {
	ChapterID    int64    `json:"chapter_id"`
	ChapterTitle string   `json:"chapter_title"`
	Images       []string `json:"images"`
}

// ChapterDownloadData is the response shape of DownloadChapter.
type ChapterDownloadData struct {
	ComicID    int64               `json:"comic_id"`
	ComicTitle string              `json:"comic_title"`
	Chapters   []SingleChapterData `json:"chapters"`
}

// ComicDownloadData is the response shape of DownloadComic.
type ComicDownloadData struct {
	ComicID    int64     `json:"comic_id"`
	ComicTitle string    `json:"comic_title"`
	Images     *[]string `json:"images,omitempty"`
	PDFPath    *string   `json:"pdf_path,omitempty"`
}

const (
	comicTypeSingleVolume = "普通漫画"
	comicTypeChapterBased = "章节漫画"
)
