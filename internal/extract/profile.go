package extract

import (
	"bytes"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

var (
	descriptionExpr = xpath.MustCompile(`//section[h2//*[text()="Description"]]/p`)
	infoBlockExpr   = xpath.MustCompile(`//div[@class="asset-profile-container"]//p[span[text()="Sector"]]`)
	sectorExpr      = xpath.MustCompile(`./span[text()="Sector"]/following-sibling::span[1]`)
	industryExpr    = xpath.MustCompile(`./span[text()="Industry"]/following-sibling::span[1]`)
	employeesExpr   = xpath.MustCompile(`./span[text()="Full Time Employees"]/following-sibling::span[1]/span`)
)

// ProfileColumns is the column order of extracted profile files.
var ProfileColumns = []string{"symbol", "sector", "industry", "employees", "description"}

// Profile extracts the company profile fields from body. Malformed markup or
// a failing rule yields a record holding only the symbol.
func Profile(symbol string, body []byte) (p ingest.Profile) {
	p.Symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			p = ingest.Profile{Symbol: symbol}
		}
	}()
	if len(body) == 0 {
		return p
	}
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return p
	}

	p.Description = description(doc)
	if info := htmlquery.QuerySelector(doc, infoBlockExpr); info != nil {
		p.Sector = Text(htmlquery.QuerySelector(info, sectorExpr))
		p.Industry = Text(htmlquery.QuerySelector(info, industryExpr))
		p.Employees = strings.ReplaceAll(Text(htmlquery.QuerySelector(info, employeesExpr)), ",", "")
	}
	return p
}

func description(doc *html.Node) string {
	paragraphs := htmlquery.QuerySelectorAll(doc, descriptionExpr)
	lines := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		if line := Text(para); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
