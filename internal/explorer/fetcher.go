package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fourbyte/selectortrace/internal/httpclient"
	"github.com/fourbyte/selectortrace/internal/store"
)

const (
	fetchEvery     = 5 * time.Minute
	listingPages   = 5
	listingPerPage = 100
)

// Fetcher polls the explorer's verified-contracts listing and inserts
// every contract it finds (§4.7).
type Fetcher struct {
	HTTP    *httpclient.Client
	Store   *store.Store
	Logger  *slog.Logger
	BaseURL string
}

// Run fetches the verified-contracts listing every fetchEvery until ctx is
// cancelled. A failed fetch is logged and the next cycle runs as usual;
// Run never returns an error.
func (f *Fetcher) Run(ctx context.Context) error {
	for {
		if err := f.fetchAll(ctx); err != nil {
			f.Logger.Error("explorer fetch", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(fetchEvery):
		}
	}
}

func (f *Fetcher) fetchAll(ctx context.Context) error {
	for page := 1; page <= listingPages; page++ {
		contracts, err := f.fetchPage(ctx, page)
		if err != nil {
			return fmt.Errorf("fetching verified-contracts page %d: %w", page, err)
		}
		for _, c := range contracts {
			if err := f.Store.UpsertContract(ctx, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchPage retrieves and parses one page of the verified-contracts HTML
// listing table.
func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]store.Contract, error) {
	url := fmt.Sprintf("%s/contractsVerified.aspx?ps=%d&p=%d", f.BaseURL, listingPerPage, page)

	resp, err := f.HTTP.Do(ctx, httpclient.GenericClassifier{}, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing listing HTML: %w", err)
	}

	return parseListing(doc, url), nil
}

// parseListing walks the verified-contracts table body, pulling
// {address, name, compiler, compiler_version} out of each row's cells.
func parseListing(doc *goquery.Document, sourceURL string) []store.Contract {
	var contracts []store.Contract

	doc.Find("tbody > tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		address := trimCellText(cells.Eq(0))
		name := trimCellText(cells.Eq(1))
		compiler := trimCellText(cells.Eq(2))
		version := trimCellText(cells.Eq(3))
		if address == "" {
			return
		}

		contracts = append(contracts, store.Contract{
			Address:         address,
			Name:            name,
			Compiler:        compiler,
			CompilerVersion: version,
			URL:             sourceURL,
		})
	})

	return contracts
}

func trimCellText(s *goquery.Selection) string {
	link := s.Find("a").First()
	if link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}
	return strings.TrimSpace(s.Text())
}
