package types

import (
	"time"
)

// SessionStatus is the lifecycle state of a crawl session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// CrawlSession identifies one logical crawler run. A session lives in exactly
// one backend database; the pair (ID, DBName) is its global identity.
type CrawlSession struct {
	ID        int64
	DBName    string
	StartTime time.Time
	EndTime   *time.Time
	SeedURLs  []string
	Config    string // opaque JSON snapshot of the run configuration
	Status    SessionStatus
}

// ContentType is the coarse file classification of a crawled resource.
type ContentType string

const (
	ContentHTML       ContentType = "html"
	ContentPDF        ContentType = "pdf"
	ContentImage      ContentType = "image"
	ContentDocument   ContentType = "document"
	ContentArchive    ContentType = "archive"
	ContentMedia      ContentType = "media"
	ContentStylesheet ContentType = "stylesheet"
	ContentScript     ContentType = "script"
	ContentData       ContentType = "data"
	ContentFont       ContentType = "font"
	ContentOther      ContentType = "other"
)

// CrawledPage is the stored record for one fetched URL. The URL is unique
// within a backend; on re-crawl the row is updated in place and the original
// SessionID is preserved.
type CrawledPage struct {
	SessionID          int64
	URL                string
	OriginalURL        string
	RedirectChain      []string
	Title              string
	MetaDescription    string
	ContentText        string
	ContentHTML        string
	ContentHash        string // MD5 of the raw response bytes
	WordCount          int
	PageSize           int
	HTTPStatus         int
	ResponseTimeMs     int64
	Language           string
	Charset            string
	H1Tags             []string
	H2Tags             []string
	MetaKeywords       []string
	CanonicalURL       string
	RobotsMeta         string
	InternalLinksCount int
	ExternalLinksCount int
	ImagesCount        int
	ContentType        ContentType
	FileExtension      string
	CrawlTime          time.Time
}

// ErrorType classifies a crawl failure for the crawl_errors table.
type ErrorType string

const (
	ErrorRobotsBlocked ErrorType = "ROBOTS_BLOCKED"
	ErrorHTTP          ErrorType = "HTTP_ERROR"
	ErrorParse         ErrorType = "PARSE_ERROR"
	ErrorTimeout       ErrorType = "TIMEOUT"
	ErrorClient        ErrorType = "CLIENT_ERROR"
)

// CrawlError records a URL that could not be crawled.
type CrawlError struct {
	SessionID  int64
	URL        string
	Type       ErrorType
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Timestamp  time.Time
}

// Backlink is a directed link from a crawled page to a target-domain URL.
// Identity is (SourceURL, TargetURL, AnchorText).
type Backlink struct {
	SourceURL       string
	TargetURL       string
	AnchorText      string
	Context         string // up to 250 chars of surrounding text
	PageTitle       string
	DomainAuthority float64
	IsNofollow      bool
	CrawlDate       time.Time
}

// DomainAuthority is the derived authority score for one host, in [0,100].
type DomainAuthority struct {
	Domain      string
	Score       float64
	LastUpdated time.Time
}

// PageRankScore is the derived PageRank value for one URL.
type PageRankScore struct {
	URL            string
	Score          float64
	LastCalculated time.Time
}
