package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var leetcodeSlugPattern = regexp.MustCompile(`leetcode\.com/problems/([^/]+)`)

// leetcodeTagTable maps LeetCode topic slugs to the fixed tag vocabulary.
var leetcodeTagTable = map[string]string{
	"dynamic-programming": "DP",
	"graph":               "Graph",
	"greedy":              "Greedy",
	"math":                "Math",
	"string":              "Strings",
	"implementation":      "Impl",
	"binary-search":       "Binary Search",
	"interactive":         "Interactive",
	"bitmask":             "Bitmasks",
	"geometry":            "Geometry",
}

const leetcodeQuery = `
	query questionData($titleSlug: String!) {
		question(titleSlug: $titleSlug) {
			questionId
			title
			difficulty
			topicTags {
				name
			}
		}
	}`

func (c *Client) lookupLeetCode(ctx context.Context, url string) (Metadata, error) {
	match := leetcodeSlugPattern.FindStringSubmatch(url)
	if match == nil {
		return Metadata{}, errors.New("no problem slug in url")
	}
	slug := match[1]

	body, err := json.Marshal(map[string]any{
		"query":     leetcodeQuery,
		"variables": map[string]string{"titleSlug": slug},
	})
	if err != nil {
		return Metadata{}, err
	}

	var payload struct {
		Data struct {
			Question *struct {
				QuestionID string `json:"questionId"`
				Title      string `json:"title"`
				Difficulty string `json:"difficulty"`
				TopicTags  []struct {
					Name string `json:"name"`
					Slug string `json:"slug"`
				} `json:"topicTags"`
			} `json:"question"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, c.leetcodeBase+"/graphql", bytes.NewReader(body), &payload); err != nil {
		return Metadata{}, err
	}
	question := payload.Data.Question
	if question == nil {
		return Metadata{}, errors.New("no question data")
	}

	foreign := make([]string, 0, len(question.TopicTags))
	for _, tag := range question.TopicTags {
		foreign = append(foreign, normalizeTopicTag(tag.Name))
	}

	return Metadata{
		Title:      fmt.Sprintf("%s. %s", question.QuestionID, question.Title),
		Platform:   "LeetCode",
		Difficulty: question.Difficulty,
		Tags:       mapTags(foreign, leetcodeTagTable),
		URL:        url,
	}, nil
}

var topicTagSpaces = regexp.MustCompile(`\s+`)

// normalizeTopicTag turns a display name like "Dynamic Programming" into
// the slug form the lookup table is keyed by.
func normalizeTopicTag(name string) string {
	return topicTagSpaces.ReplaceAllString(name, "-")
}
