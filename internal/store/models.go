// Package store is the relational persistence layer: every table in §3 of
// the data model, plus the insert-or-fetch and idempotent-edge operations
// the harvester's workers rely on.
package store

import "time"

// Signature is a canonical, content-addressed (text, hash) pair.
type Signature struct {
	ID      int64
	Text    string
	Hash    string
	IsValid bool
	AddedAt time.Time
}

// Kind is the declaration kind a signature was observed under.
type Kind string

const (
	KindFunction    Kind = "function"
	KindEvent       Kind = "event"
	KindError       Kind = "error"
	KindConstructor Kind = "constructor"
	KindFallback    Kind = "fallback"
	KindReceive     Kind = "receive"
)

// User is a repository owner or stargazer on the code host.
type User struct {
	ID        int64
	Login     string
	URL       string
	IsDeleted bool
	AddedAt   time.Time
	VisitedAt *time.Time
}

// Repository is a code-host repository tracked by the crawler.
type Repository struct {
	ID                  int64
	OwnerID             int64
	Name                string
	URL                 string
	PrimaryLanguage     *string
	Stargazers          int
	Size                int
	IsFork              bool
	CreatedAt           time.Time
	PushedAt            time.Time
	UpdatedAt           time.Time
	AddedAt             time.Time
	VisitedAt           *time.Time
	ScrapedAt           *time.Time
	TargetLanguageRatio *float64
	IsDeleted           bool
	FoundByCrawling     bool
}

// Contract is a block-explorer verified contract.
type Contract struct {
	ID               int64
	Address          string
	Name             string
	Compiler         string
	CompilerVersion  string
	URL              string
	ScrapedAt        *time.Time
	AddedAt          time.Time
}

// CrawlerState is the crawler's singleton scheduling bookkeeping row.
type CrawlerState struct {
	LastRepositorySearch time.Time
	LastRepositoryCheck  time.Time
	LastUserCheck        time.Time
}

// SourceKindCount is one row of a per-source signature-kind count, used by
// the query service's statistics endpoint.
type SourceKindCount struct {
	Kind  string
	Count int64
}

// Statistics bundles the aggregate counters the query service exposes.
type Statistics struct {
	SignatureCount          int64
	SignatureCountGithub    int64
	SignatureCountEtherscan int64
	SignatureCountFourbyte  int64
	KindDistribution        []SourceKindCount
	RegistryCursorLag       int64
	OldestUnvisitedOwner    *time.Time
}
