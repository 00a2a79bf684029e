package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// firstPage is recorded for every comment; topic pagination is not followed.
const firstPage = "1"

// Comments extracts one record per article element of a forum topic page.
// Pages without articles, or with unparseable markup, yield no records.
func Comments(symbol string, body []byte) (out []ingest.Comment) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	if len(body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		id, _ := article.Attr("id")
		date, _ := article.Find("time").First().Attr("datetime")
		c := ingest.Comment{
			Symbol:      Normalize(symbol),
			PageNumber:  firstPage,
			CommentID:   id,
			CommentDate: date,
		}
		if content := article.Find(`div[data-role="commentContent"]`).First(); content.Length() > 0 {
			c.CommentText = Text(content.Get(0))
		}
		out = append(out, c)
	})
	return out
}
