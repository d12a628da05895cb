package main

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/gql-db/gqldb/internal/dberrors"
)

var sinceParser = buildSinceParser()

func buildSinceParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseSince turns a natural-language time expression like "3 days
// ago" or "yesterday" into an absolute time for `log --since`.
func parseSince(text string) (time.Time, error) {
	r, err := sinceParser.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, dberrors.WrapFormat(err, "parse --since %q", text)
	}
	if r == nil {
		return time.Time{}, dberrors.FormatF("could not understand --since %q", text)
	}
	return r.Time, nil
}
