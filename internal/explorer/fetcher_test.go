package explorer

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const listingFixture = `
<table>
<tbody>
<tr>
	<td><a href="/address/0xabc">0xabc</a></td>
	<td><a href="/address/0xabc">MyToken</a></td>
	<td>Solidity</td>
	<td>v0.8.19+commit.7dd6d404</td>
</tr>
<tr>
	<td><a href="/address/0xdef">0xdef</a></td>
	<td>Unnamed</td>
	<td>Vyper</td>
	<td>v0.3.7</td>
</tr>
</tbody>
</table>`

func TestParseListingExtractsEachRow(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingFixture))
	if err != nil {
		t.Fatal(err)
	}

	contracts := parseListing(doc, "https://example.test/contractsVerified.aspx?p=1")
	if len(contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(contracts))
	}

	first := contracts[0]
	if first.Address != "0xabc" || first.Name != "MyToken" || first.Compiler != "Solidity" {
		t.Fatalf("first contract = %+v", first)
	}

	second := contracts[1]
	if second.Address != "0xdef" || second.Name != "Unnamed" || second.CompilerVersion != "v0.3.7" {
		t.Fatalf("second contract = %+v", second)
	}
}

func TestParseListingSkipsRowsWithoutEnoughCells(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<table><tbody><tr><td>only one cell</td></tr></tbody></table>`))
	if err != nil {
		t.Fatal(err)
	}

	contracts := parseListing(doc, "https://example.test")
	if len(contracts) != 0 {
		t.Fatalf("expected 0 contracts from a malformed row, got %d", len(contracts))
	}
}
