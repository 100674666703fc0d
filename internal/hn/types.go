// Package hn implements the Source Adapter: resolving the day's
// ranked candidate stories from the Hacker News Firebase API.
package hn

import "time"

// Story is a single Hacker News item resolved into the fields the
// digest pipeline needs.
type Story struct {
	ID          int
	Rank        int
	Title       string
	URL         string
	Score       int
	Descendants int
	By          string
	CreatedAt   time.Time
	Kids        []int
}

// rawItem mirrors the Firebase /v0/item/{id}.json response shape.
type rawItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
	Kids        []int  `json:"kids"`
	Text        string `json:"text"`
}
